package ui

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"

	"pkgd/pkg/backend"
	"pkgd/pkg/packageid"
)

// ErrNoChoices is returned by SelectPackage when none of the candidates
// carries a valid package id.
var ErrNoChoices = errors.New("no packages to choose from")

// Confirm asks a yes/no question on the terminal. An empty answer, or a
// terminal that cannot prompt, takes defaultYes; ctrl-c answers no.
func Confirm(question string, defaultYes bool) (bool, error) {
	hint, def := " [y/N]", ""
	if defaultYes {
		hint, def = " [Y/n]", "y"
	}

	answer, err := (&promptui.Prompt{Label: question + hint, IsConfirm: true, Default: def}).Run()
	switch {
	case errors.Is(err, promptui.ErrAbort), errors.Is(err, promptui.ErrInterrupt):
		return false, nil
	case err != nil:
		return defaultYes, nil
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return defaultYes, nil
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// candidate is one row of the package picker.
type candidate struct {
	packageid.ID
	PackageID string
	Summary   string
}

var pickerTemplates = &promptui.SelectTemplates{
	Label:    "{{ . }}",
	Active:   "▸ {{ .Name | cyan }} {{ .Version | green }} {{ .Arch }} [{{ .Data | magenta }}]",
	Inactive: "  {{ .Name }} {{ .Version | faint }} {{ .Arch | faint }} [{{ .Data | faint }}]",
	Selected: "✓ {{ .Name | cyan }} {{ .Version | green }} [{{ .Data | magenta }}]",
	Details: `
{{ "id:" | faint }}	{{ .PackageID }}
{{ "summary:" | faint }}	{{ .Summary }}`,
}

// SelectPackage asks which of several packages sharing a name was meant.
// A single candidate is returned without prompting.
func SelectPackage(packages []backend.PackageEvent, question string) (string, error) {
	var rows []candidate
	for _, p := range packages {
		if id, err := packageid.Parse(p.PackageID); err == nil {
			rows = append(rows, candidate{ID: id, PackageID: p.PackageID, Summary: p.Summary})
		}
	}
	switch len(rows) {
	case 0:
		return "", ErrNoChoices
	case 1:
		return rows[0].PackageID, nil
	}

	picker := promptui.Select{
		Label:     question,
		Items:     rows,
		Templates: pickerTemplates,
		Size:      10,
		Searcher: func(input string, i int) bool {
			return strings.Contains(strings.ToLower(rows[i].Name), strings.ToLower(input))
		},
	}
	i, _, err := picker.Run()
	if err != nil {
		return "", err
	}
	return rows[i].PackageID, nil
}
