package main

import "github.com/charmbracelet/huh"

// confirm asks a yes/no question on the terminal.
func confirm(title, yes, no string) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Affirmative(yes).
		Negative(no).
		Value(&ok).
		Run()
	return ok, err
}

func confirmOverwrite(title string) (bool, error) {
	return confirm(title, "Overwrite", "Keep")
}
