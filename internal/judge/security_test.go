package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanForbiddenPatterns(t *testing.T) {
	tests := []struct {
		name      string
		lang      Language
		code      string
		forbidden bool
	}{
		{"clean python", LanguagePython, "def solve(n):\n    return n * 2", false},
		{"python os import", LanguagePython, "import os\ndef solve(n):\n    return os.getcwd()", true},
		{"python eval", LanguagePython, "def solve(n):\n    return eval(n)", true},
		{"clean javascript", LanguageJavaScript, "function solve(n) { return n * 2; }", false},
		{"javascript fs require", LanguageJavaScript, "const fs = require('fs');", true},
		{"javascript dynamic Function", LanguageJavaScript, "const f = Function('return 1');", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := scanForbiddenPatterns(tt.lang, tt.code)
			if tt.forbidden {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}
