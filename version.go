package recipesms

// Version is set at build time with -ldflags "-X github.com/a-h/recipesms.Version=...".
var Version = "dev"
