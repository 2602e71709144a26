package native

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// pacmanPackage is one package parsed from pacman output.
type pacmanPackage struct {
	Repo        string
	Name        string
	Version     string
	Arch        string
	Description string
	Installed   bool
}

// pacmanInfo is the result of pacman -Si/-Qi.
type pacmanInfo struct {
	Name        string
	Version     string
	Description string
	Arch        string
	URL         string
	License     string
	Repository  string
	Groups      []string
	Size        uint64
	DependsOn   []string
	RequiredBy  []string
}

// parseSearchOutput parses pacman -Ss, -Qs and -F output.
func parseSearchOutput(output string) []pacmanPackage {
	var packages []pacmanPackage
	lines := strings.Split(output, "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		// Repository/package line: repo/package version [installed]
		if !strings.Contains(line, "/") || strings.HasPrefix(line, " ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		repoPkg := strings.SplitN(parts[0], "/", 2)
		if len(repoPkg) < 2 {
			continue
		}

		pkg := pacmanPackage{
			Repo:    repoPkg[0],
			Name:    repoPkg[1],
			Version: parts[1],
		}

		for _, p := range parts[2:] {
			if strings.HasPrefix(p, "[installed") {
				pkg.Installed = true
			}
		}
		if pkg.Repo == "local" {
			pkg.Installed = true
		}

		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], " ") {
			pkg.Description = strings.TrimSpace(lines[i+1])
			i++
		}

		packages = append(packages, pkg)
	}

	return packages
}

// parseQueryOutput parses "name version" lines from pacman -Q.
func parseQueryOutput(output string) []pacmanPackage {
	var packages []pacmanPackage
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		packages = append(packages, pacmanPackage{
			Repo:      "local",
			Name:      fields[0],
			Version:   fields[1],
			Installed: true,
		})
	}
	return packages
}

// parseSyncList parses "repo name version [installed]" lines from pacman -Sl.
func parseSyncList(output string) []pacmanPackage {
	var packages []pacmanPackage
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		packages = append(packages, pacmanPackage{
			Repo:      fields[0],
			Name:      fields[1],
			Version:   fields[2],
			Installed: len(fields) > 3 && strings.HasPrefix(fields[3], "[installed"),
		})
	}
	return packages
}

// printFormat makes pacman print one package id per target.
const printFormat = "%n;%v;%a;%r"

// parsePrintFormat parses the lines produced by --print-format printFormat.
func parsePrintFormat(output string) []pacmanPackage {
	var packages []pacmanPackage
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		parts := strings.Split(strings.TrimSpace(scanner.Text()), ";")
		if len(parts) != 4 || parts[0] == "" {
			continue
		}
		packages = append(packages, pacmanPackage{
			Name:    parts[0],
			Version: parts[1],
			Arch:    parts[2],
			Repo:    parts[3],
		})
	}
	return packages
}

// parsePackageInfo parses pacman -Si/-Qi output.
func parsePackageInfo(output string) *pacmanInfo {
	info := &pacmanInfo{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	var lastKey string

	for scanner.Scan() {
		line := scanner.Text()

		// Continuation lines are indented and extend the previous list.
		if strings.HasPrefix(line, " ") && lastKey != "" && !strings.Contains(line, " : ") {
			info.appendList(lastKey, strings.TrimSpace(line))
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		lastKey = key

		switch key {
		case "Name":
			info.Name = value
		case "Version":
			info.Version = value
		case "Description":
			info.Description = value
		case "Architecture":
			info.Arch = value
		case "URL":
			info.URL = value
		case "Licenses":
			info.License = value
		case "Repository":
			info.Repository = value
		case "Installed Size":
			info.Size = parseSize(value)
		default:
			info.appendList(key, value)
		}
	}

	return info
}

func (info *pacmanInfo) appendList(key, value string) {
	if value == "None" || value == "" {
		return
	}
	switch key {
	case "Groups":
		info.Groups = append(info.Groups, strings.Fields(value)...)
	case "Depends On":
		info.DependsOn = append(info.DependsOn, strings.Fields(value)...)
	case "Required By":
		info.RequiredBy = append(info.RequiredBy, strings.Fields(value)...)
	}
}

var sizeUnits = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
}

// parseSize converts "12.34 MiB" into bytes.
func parseSize(value string) uint64 {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return 0
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	unit, ok := sizeUnits[fields[1]]
	if !ok {
		return 0
	}
	return uint64(n * unit)
}

// stripConstraint turns a dependency like "glibc>=2.38" into "glibc".
func stripConstraint(dep string) string {
	if i := strings.IndexAny(dep, "<>="); i > 0 {
		return dep[:i]
	}
	return dep
}

// parseFileList parses "name /path" lines from pacman -Ql.
func parseFileList(output string) []string {
	var files []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), " ", 2)
		if len(fields) != 2 {
			continue
		}
		path := fields[1]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		if strings.HasSuffix(path, "/") {
			continue
		}
		files = append(files, path)
	}
	return files
}

// ownerPattern matches "/usr/bin/ls is owned by coreutils 9.4-3".
var ownerPattern = regexp.MustCompile(`is owned by (\S+) (\S+)`)

// parseOwner parses pacman -Qo output.
func parseOwner(output string) []pacmanPackage {
	var packages []pacmanPackage
	for _, m := range ownerPattern.FindAllStringSubmatch(output, -1) {
		packages = append(packages, pacmanPackage{
			Repo:      "local",
			Name:      m[1],
			Version:   m[2],
			Installed: true,
		})
	}
	return packages
}

// parseGroupOutput parses "group name" lines from pacman -Sg/-Qg.
func parseGroupOutput(output string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 {
			names = appendUnique(names, fields[1])
		}
	}
	return names
}

// progressLine is one "(2/5) installing foo" line of transaction output.
type progressLine struct {
	Action  string
	Name    string
	Current int
	Total   int
}

var progressPattern = regexp.MustCompile(`^\((\s*\d+)/(\d+)\) (installing|upgrading|reinstalling|downgrading|removing|checking|loading|downloading) (\S+?)(?:\.\.\.)?(?:\s|$)`)

// parseProgressLine recognises a per-package progress line.
func parseProgressLine(line string) (progressLine, bool) {
	m := progressPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return progressLine{}, false
	}
	current, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil {
		return progressLine{}, false
	}
	total, err := strconv.Atoi(m[2])
	if err != nil || total == 0 {
		return progressLine{}, false
	}
	return progressLine{Action: m[3], Name: m[4], Current: current, Total: total}, true
}
