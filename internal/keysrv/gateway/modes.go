package gateway

import "strings"

// Mode selects the system instruction sent ahead of the prompt.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeHacker Mode = "hacker"
	ModeCasual Mode = "casual"
	ModeExpert Mode = "expert"
)

var systemInstructions = map[Mode]string{
	ModeNormal: "You are a helpful assistant. Answer clearly and accurately, and say so when you are unsure.",
	ModeHacker: "You are a seasoned software and infrastructure engineer. Answer in a terse, technical style, " +
		"favour command lines and code, and format output as if printed in a terminal.",
	ModeCasual: "You are a friendly assistant chatting informally. Keep answers short and conversational, " +
		"and use plain everyday language.",
	ModeExpert: "You are a domain expert. Give thorough, well structured answers with precise terminology, " +
		"step-by-step reasoning and concrete technical detail.",
}

// Modes lists the recognized modes.
func Modes() []Mode {
	return []Mode{ModeNormal, ModeHacker, ModeCasual, ModeExpert}
}

// ParseMode maps a mode tag to a Mode; unknown or empty tags yield ModeNormal.
func ParseMode(tag string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(tag)))
	if _, ok := systemInstructions[m]; ok {
		return m
	}
	return ModeNormal
}

// SystemInstruction returns the instruction for a mode tag.
func SystemInstruction(tag string) string {
	return systemInstructions[ParseMode(tag)]
}
