package wheel

import (
	"bytes"
	"fmt"
	"strings"
)

// RelocatableShebang is written into launchers of relocatable installs;
// the interpreter is looked up on PATH when the script runs.
const RelocatableShebang = "#!/usr/bin/env python"

// maxShebangLength is the longest interpreter line most kernels accept.
const maxShebangLength = 127

// Shebang returns the first line(s) of a script run by interpreter. Paths
// the kernel cannot exec directly go through a /bin/sh trampoline.
func Shebang(interpreter string, relocatable bool) string {
	if relocatable {
		return RelocatableShebang
	}
	if strings.ContainsAny(interpreter, " \t") || len(interpreter)+2 > maxShebangLength {
		return "#!/bin/sh\n'''exec' \"" + interpreter + "\" \"$0\" \"$@\"\n' '''"
	}
	return "#!" + interpreter
}

// Launcher renders the script that starts an entry point.
func Launcher(ep EntryPoint, shebang string) []byte {
	importName, _, _ := strings.Cut(ep.Function, ".")
	return fmt.Appendf(nil, `%s
# -*- coding: utf-8 -*-
import re
import sys
from %s import %s
if __name__ == "__main__":
    sys.argv[0] = re.sub(r"(-script\.pyw|\.exe)?$", "", sys.argv[0])
    sys.exit(%s())
`, shebang, ep.Module, importName, ep.Function)
}

// rewriteShebang replaces a leading "#!python" line with shebang and
// reports whether it did.
func rewriteShebang(content []byte, shebang string) ([]byte, bool) {
	if !bytes.HasPrefix(content, []byte("#!python")) {
		return content, false
	}
	rest := []byte{}
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		rest = content[i+1:]
	}
	out := make([]byte, 0, len(shebang)+1+len(rest))
	out = append(out, shebang...)
	out = append(out, '\n')
	return append(out, rest...), true
}
