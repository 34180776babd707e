package main

import (
	"context"
	"fmt"

	"github.com/a-h/recipesms"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(recipesms.Version)
	return nil
}
