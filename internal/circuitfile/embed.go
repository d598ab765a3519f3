package circuitfile

import "embed"

// builtinCircuits embeds the example circuits shipped with the binary.
//
//go:embed circuits/*.yaml
var builtinCircuits embed.FS
