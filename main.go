/*
Copyright © 2025 openpariksha
*/
package main

import (
	"github.com/joho/godotenv"

	"github.com/openpariksha/pariksha-be/cmd"
)

func main() {
	cmd.Execute()
}

func init() {
	// A missing .env is fine; keys can come from the real environment.
	_ = godotenv.Load()
}
