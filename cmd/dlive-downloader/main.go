package main

import "github.com/dliveget/dlive-downloader/internal/cli"

func main() {
	cli.Execute()
}
