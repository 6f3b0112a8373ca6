package judge

import "strings"

// forbiddenPattern is a substring that, if present in a submission's
// source, fails the pre-execution static scan. Substring matching is
// deliberately coarse; it is a speed bump against casual sandbox
// escapes, not a full AST analysis.
type forbiddenPattern struct {
	substring string
	reason    string
}

var pythonForbidden = []forbiddenPattern{
	{"import os", "os module import is not allowed"},
	{"import subprocess", "subprocess module import is not allowed"},
	{"import socket", "socket module import is not allowed"},
	{"import shutil", "shutil module import is not allowed"},
	{"__import__", "dynamic import is not allowed"},
	{"open(", "filesystem access is not allowed"},
	{"eval(", "dynamic eval is not allowed"},
	{"exec(", "dynamic exec is not allowed"},
	{"compile(", "dynamic compile is not allowed"},
}

var javaScriptForbidden = []forbiddenPattern{
	{"require('fs')", "filesystem module is not allowed"},
	{"require(\"fs\")", "filesystem module is not allowed"},
	{"require('child_process')", "child_process module is not allowed"},
	{"require(\"child_process\")", "child_process module is not allowed"},
	{"require('net')", "net module is not allowed"},
	{"require(\"net\")", "net module is not allowed"},
	{"process.binding", "process.binding is not allowed"},
	{"eval(", "dynamic eval is not allowed"},
	{"Function(", "dynamic Function construction is not allowed"},
}

// scanForbiddenPatterns returns a non-empty reason if req's source
// contains a disallowed construct, or "" if the scan passes.
func scanForbiddenPatterns(lang Language, code string) string {
	var patterns []forbiddenPattern
	switch lang {
	case LanguagePython:
		patterns = pythonForbidden
	case LanguageJavaScript:
		patterns = javaScriptForbidden
	}

	for _, p := range patterns {
		if strings.Contains(code, p.substring) {
			return p.reason
		}
	}
	return ""
}
