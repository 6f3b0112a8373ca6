package judge

import (
	"fmt"
	"strings"
)

// harnessTemplate describes how to invoke one language's interpreter
// against a wrapped copy of the user's code.
type harnessTemplate struct {
	filename    string
	interpreter string
	flags       func(req Request) []string // interpreter flags, placed before the script path
	build       func(Request) string
}

func harnessFor(lang Language) (harnessTemplate, bool) {
	switch lang {
	case LanguagePython:
		return harnessTemplate{
			filename:    "solution.py",
			interpreter: "python3",
			flags:       func(Request) []string { return nil },
			build:       buildPythonHarness,
		}, true
	case LanguageJavaScript:
		return harnessTemplate{
			filename:    "solution.js",
			interpreter: "node",
			flags:       javaScriptFlags,
			build:       buildJavaScriptHarness,
		}, true
	default:
		return harnessTemplate{}, false
	}
}

// javaScriptFlags caps the V8 heap at req.MemoryMB via node's own
// memory-limit flag, since node has no setrlimit-style prelude the way
// the Python harness does.
func javaScriptFlags(req Request) []string {
	if req.MemoryMB <= 0 {
		return nil
	}
	return []string{fmt.Sprintf("--max-old-space-size=%d", req.MemoryMB)}
}

// buildPythonHarness wraps the user's code with a driver that locates
// the entry point (prefers a Solution class's first public method,
// otherwise the first top-level function), adapts the test input shape
// to the function's arity, coerces stringified JSON values back to
// native types, and reports each case as one line of the output array.
func buildPythonHarness(req Request) string {
	var b strings.Builder

	fmt.Fprint(&b, pythonHarnessPrelude)
	fmt.Fprintf(&b, "\nUSER_FUNCTION_NAME = %q\n", req.FunctionName)
	b.WriteString("\n# --- user solution begins ---\n")
	b.WriteString(req.Code)
	b.WriteString("\n# --- user solution ends ---\n")
	b.WriteString(pythonHarnessDriver)

	return b.String()
}

// pythonHarnessPrelude sets resource limits and JSON plumbing before the
// user's code is appended.
const pythonHarnessPrelude = `import json
import sys
import time
import resource
import inspect

try:
    mem_mb = int(sys.argv[2]) if len(sys.argv) > 2 else 256
    resource.setrlimit(resource.RLIMIT_AS, (mem_mb * 1024 * 1024, mem_mb * 1024 * 1024))
except Exception:
    pass
`

// pythonHarnessDriver runs after the user's code has been appended to
// the source file, so it can see any Solution class or top-level
// function the user defined.
const pythonHarnessDriver = `

def _find_entry_point():
    if 'Solution' in globals():
        cls = globals()['Solution']
        for name, member in inspect.getmembers(cls, predicate=inspect.isfunction):
            if not name.startswith('_'):
                instance = cls()
                return getattr(instance, name)
    if USER_FUNCTION_NAME in globals() and callable(globals()[USER_FUNCTION_NAME]):
        return globals()[USER_FUNCTION_NAME]
    for name, value in list(globals().items()):
        if name.startswith('_') or name == 'USER_FUNCTION_NAME':
            continue
        if inspect.isfunction(value) and value.__module__ == '__main__':
            return value
    raise RuntimeError('no solution entry point found')


def _coerce(value):
    if isinstance(value, str):
        try:
            return json.loads(value)
        except (ValueError, TypeError):
            return value
    return value


def _call_args(fn, raw_input):
    value = _coerce(raw_input)
    try:
        sig = inspect.signature(fn)
        arity = len([p for p in sig.parameters.values()
                     if p.kind in (p.POSITIONAL_OR_KEYWORD, p.POSITIONAL_ONLY)])
    except (TypeError, ValueError):
        arity = 1

    if isinstance(value, list):
        if arity > 1 and len(value) == arity:
            return value
        if arity == 1 and len(value) == 1 and isinstance(value[0], list):
            return [value[0]]
        return [value]
    return [value]


def main():
    with open(sys.argv[1]) as f:
        cases = json.load(f)

    fn = _find_entry_point()
    results = []
    for case in cases:
        raw_input = case.get('input')
        start = time.time()
        try:
            args = _call_args(fn, raw_input)
            output = fn(*args)
            results.append({
                'output': json.dumps(output),
                'time_ms': int((time.time() - start) * 1000),
            })
        except Exception as exc:  # noqa: BLE001 - reported per case, not raised
            results.append({
                'output': '',
                'error': f'{type(exc).__name__}: {exc}',
                'time_ms': int((time.time() - start) * 1000),
            })

    print(json.dumps(results))


if __name__ == '__main__':
    main()
`

// buildJavaScriptHarness mirrors buildPythonHarness's contract for
// Node.js submissions.
func buildJavaScriptHarness(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "const USER_FUNCTION_NAME = %q;\n", req.FunctionName)
	b.WriteString("\n// --- user solution begins ---\n")
	b.WriteString(req.Code)
	b.WriteString("\n// --- user solution ends ---\n")
	b.WriteString(javaScriptHarnessDriver)

	return b.String()
}

const javaScriptHarnessDriver = `
const fs = require('fs');

function findEntryPoint() {
  if (typeof Solution === 'function') {
    const instance = new Solution();
    const methodName = Object.getOwnPropertyNames(Solution.prototype)
      .find((n) => n !== 'constructor');
    if (methodName) {
      return instance[methodName].bind(instance);
    }
  }
  if (typeof globalThis[USER_FUNCTION_NAME] === 'function') {
    return globalThis[USER_FUNCTION_NAME];
  }
  throw new Error('no solution entry point found');
}

function coerce(value) {
  if (typeof value === 'string') {
    try {
      return JSON.parse(value);
    } catch (e) {
      return value;
    }
  }
  return value;
}

function callArgs(fn, rawInput) {
  const value = coerce(rawInput);
  const arity = fn.length;
  if (Array.isArray(value)) {
    if (arity > 1 && value.length === arity) return value;
    if (arity === 1 && value.length === 1 && Array.isArray(value[0])) return [value[0]];
    return [value];
  }
  return [value];
}

function main() {
  const cases = JSON.parse(fs.readFileSync(process.argv[2], 'utf8'));
  const fn = findEntryPoint();
  const results = [];

  for (const testCase of cases) {
    const start = Date.now();
    try {
      const args = callArgs(fn, testCase.input);
      const output = fn(...args);
      results.push({ output: JSON.stringify(output), time_ms: Date.now() - start });
    } catch (err) {
      results.push({ output: '', error: String(err && err.stack || err), time_ms: Date.now() - start });
    }
  }

  process.stdout.write(JSON.stringify(results));
}

main();
`
