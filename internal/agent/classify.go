package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParsedOutput is the normalized view of a tool's raw textual report.
// It is derived purely from the text and recomputed on demand.
type ParsedOutput struct {
	ExitCode *int
	Output   string
	Error    string
	Raw      string
}

var (
	exitCodeRe  = regexp.MustCompile(`(?m)^Exit Code:\s*(-?\d+)`)
	outMarkerRe = regexp.MustCompile(`(?i)^(Output|Stdout Log):`)
	errMarkerRe = regexp.MustCompile(`(?i)^(Error|Errors|Stderr Log):`)
)

// Classify parses a tool's loosely structured report: an optional
// "Exit Code: <int>" line plus optional labeled output/error sections.
// Lines are bucketed into the active section until a new marker or the
// exit-code line is seen. Unlabeled non-empty text falls to the error
// bucket when the exit code is non-zero, otherwise to output.
func Classify(raw string) ParsedOutput {
	p := ParsedOutput{Raw: raw}

	exitMatch := exitCodeRe.FindStringSubmatch(raw)
	if exitMatch != nil {
		code, err := strconv.Atoi(exitMatch[1])
		if err == nil {
			p.ExitCode = &code
		}
	}

	var outLines, errLines []string
	section := 0
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case outMarkerRe.MatchString(line):
			section = 1
			continue
		case errMarkerRe.MatchString(line):
			section = 2
			continue
		case strings.HasPrefix(line, "Exit Code:"):
			section = 0
			continue
		}
		switch section {
		case 1:
			outLines = append(outLines, line)
		case 2:
			errLines = append(errLines, line)
		}
	}
	p.Output = strings.TrimSpace(strings.Join(outLines, "\n"))
	p.Error = strings.TrimSpace(strings.Join(errLines, "\n"))

	if p.Output == "" && p.Error == "" {
		clean := raw
		if exitMatch != nil {
			clean = strings.Replace(raw, exitMatch[0], "", 1)
		}
		clean = strings.TrimSpace(clean)
		if p.ExitCode != nil && *p.ExitCode != 0 {
			p.Error = clean
		} else {
			p.Output = clean
		}
	}
	return p
}

// DefaultFailureKeywords is the fallback keyword set scanned when a report
// carries no exit code. Deployments can override it in the agent config.
var DefaultFailureKeywords = []string{
	"error:", "fail", "except", "trace", "timeout", "denied", "not found",
}

// Classifier decides success or failure for a parsed tool report.
type Classifier struct {
	Keywords []string
}

func NewClassifier(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultFailureKeywords
	}
	return &Classifier{Keywords: keywords}
}

// Judge applies the failure rules in priority order. An explicit exit code
// is the strongest signal and overrides keyword matching: a program may
// legitimately print "error" while exiting 0, but a non-zero code is
// authoritative when present. An exit code of exactly zero with no output
// and no error text is treated as suspicious rather than trustworthy.
func (c *Classifier) Judge(p ParsedOutput) (failed bool, reason string) {
	if p.ExitCode != nil {
		if *p.ExitCode != 0 {
			return true, fmt.Sprintf("non-zero exit (%d)", *p.ExitCode)
		}
	} else {
		lower := strings.ToLower(p.Raw)
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				return true, "error keyword detected"
			}
		}
	}
	if p.ExitCode != nil && *p.ExitCode == 0 && p.Output == "" && p.Error == "" {
		return true, "exit 0 but no output"
	}
	return false, ""
}
