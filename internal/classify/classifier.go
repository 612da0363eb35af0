// Package classify infers device type and operating system from probe
// results using a weighted rule table. Classification is pure: it reads a
// probe result and a vendor name and never touches the network.
package classify

import (
	"strings"

	"github.com/anstrom/netmapper/internal/probe"
)

// Confidence grades how much evidence backs a verdict.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score thresholds for the confidence tiers. Two independent strong signals
// (a pattern plus a service, or a vendor plus a port pair) clear medium; high
// needs corroboration from three or more.
const (
	highThreshold   = 12
	mediumThreshold = 6
)

// Unknown is the verdict value when no rule gathers any evidence.
const Unknown = "unknown"

// Verdict is one classification outcome with its supporting score.
type Verdict struct {
	Value      string
	Confidence Confidence
	Score      int
}

// Classifier applies a rule table to probe results.
type Classifier struct {
	rules *RuleTable
}

// New creates a classifier. A nil table selects the built-in rules.
func New(rules *RuleTable) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// signals is the flattened evidence extracted once per result.
type signals struct {
	ports    map[int]bool
	services map[string]bool
	corpus   string
	vendor   string
}

func extractSignals(res *probe.Result, vendor string) signals {
	sig := signals{
		ports:    make(map[int]bool),
		services: make(map[string]bool),
		vendor:   strings.ToLower(vendor),
	}

	var text []string
	for _, pr := range res.OpenPorts() {
		sig.ports[pr.Port] = true
		if pr.Service != "" {
			sig.services[strings.ToLower(pr.Service)] = true
		}
		if pr.Banner != "" {
			text = append(text, pr.Banner)
		}
	}
	if res.Hostname != "" {
		text = append(text, res.Hostname)
	}
	if res.SNMPDescription != "" {
		text = append(text, res.SNMPDescription)
	}
	if res.OSFingerprint != "" {
		text = append(text, res.OSFingerprint)
	}
	sig.corpus = strings.ToLower(strings.Join(text, "\n"))
	return sig
}

// ClassifyDevice scores every device rule against the result and returns the
// best match. Ties go to the rule listed first. A result with no positive
// signal, or one no rule scores, is Unknown at low confidence.
func (c *Classifier) ClassifyDevice(res *probe.Result, vendor string) Verdict {
	if !res.HasSignal() {
		return Verdict{Value: Unknown, Confidence: ConfidenceLow}
	}

	sig := extractSignals(res, vendor)
	best := Verdict{Value: Unknown, Confidence: ConfidenceLow}

	for i := range c.rules.Devices {
		rule := &c.rules.Devices[i]
		score := c.scoreDevice(rule, sig)
		if score > best.Score {
			best = Verdict{Value: rule.Type, Confidence: confidenceFor(score), Score: score}
		}
	}

	if best.Score == 0 {
		if quick := quickClassify(sig.ports); quick != "" {
			return Verdict{Value: quick, Confidence: ConfidenceLow, Score: 1}
		}
	}
	return best
}

func (c *Classifier) scoreDevice(rule *DeviceRule, sig signals) int {
	w := c.rules.Weights
	score := 0

	for _, port := range rule.Ports {
		if sig.ports[port] {
			score += w.Port
		}
	}
	for _, service := range rule.Services {
		if sig.services[service] {
			score += w.Service
		}
	}
	for _, pattern := range rule.Patterns {
		if sig.corpus != "" && strings.Contains(sig.corpus, pattern) {
			score += w.Pattern
		}
	}
	for _, vendor := range rule.Vendors {
		if sig.vendor != "" && strings.Contains(sig.vendor, vendor) {
			score += w.Vendor
		}
	}
	return score
}

// quickClassify is the coarse port-only heuristic for hosts nothing else
// matched. It mirrors the shortcuts operators use by eye: a raw print port
// means printer, RDP means workstation, SSH plus a web port means server.
func quickClassify(ports map[int]bool) string {
	switch {
	case ports[9100]:
		return "printer"
	case ports[3389]:
		return "workstation"
	case ports[22] && ports[80]:
		return "server"
	}
	return ""
}

// ClassifyOS determines the operating system family. Text patterns and
// characteristic ports are scored like device rules; when no rule gathers
// evidence the TTL of the echo reply picks a coarse family, since common
// initial TTL values differ per OS lineage.
func (c *Classifier) ClassifyOS(res *probe.Result) Verdict {
	sig := extractSignals(res, "")
	best := Verdict{Value: Unknown, Confidence: ConfidenceLow}

	for i := range c.rules.OS {
		rule := &c.rules.OS[i]
		score := c.scoreOS(rule, sig)
		if score > best.Score {
			best = Verdict{Value: rule.Name, Confidence: confidenceFor(score), Score: score}
		}
	}

	if best.Score == 0 {
		if name := osFromTTL(res.TTL); name != "" {
			return Verdict{Value: name, Confidence: ConfidenceLow, Score: 1}
		}
	}
	return best
}

func (c *Classifier) scoreOS(rule *OSRule, sig signals) int {
	w := c.rules.Weights
	score := 0

	for _, port := range rule.Ports {
		if sig.ports[port] {
			score += w.Port
		}
	}
	for _, pattern := range rule.Patterns {
		if sig.corpus != "" && strings.Contains(sig.corpus, pattern) {
			score += w.Pattern
		}
	}
	return score
}

// osFromTTL buckets an observed TTL by the nearest common initial value:
// 64 for Unix-likes, 128 for Windows, 255 for network gear.
func osFromTTL(ttl int) string {
	switch {
	case ttl <= 0:
		return ""
	case ttl <= 64:
		return "Linux/Unix"
	case ttl <= 128:
		return "Windows"
	default:
		return "Network Device"
	}
}

func confidenceFor(score int) Confidence {
	switch {
	case score >= highThreshold:
		return ConfidenceHigh
	case score >= mediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
