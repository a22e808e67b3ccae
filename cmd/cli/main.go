package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mab0130/MGNBot/cmd/cli/commands"
)

func main() {
	// A missing .env file is fine; environment variables may be set directly.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
