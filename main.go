package main

import "github.com/kferran/apfsck/cmd"

func main() {
	cmd.Execute()
}
