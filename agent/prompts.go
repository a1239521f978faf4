package agent

import (
	_ "embed"
)

//go:embed prompts/complete.tmpl
var completePrompt string

//go:embed prompts/decompose.tmpl
var decomposePrompt string

//go:embed prompts/tools.tmpl
var toolsPrompt string
