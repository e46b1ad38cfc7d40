package main

import "github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/cmd"

func main() {
	cmd.Execute()
}
