package main

import "github.com/sarmiento-reclamos/reclamos/cmd"

func main() {
	cmd.Execute()
}
