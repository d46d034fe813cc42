package config

import "os"

// ExpandEnv expands `${VAR}` / `$VAR` references in raw YAML bytes using the
// process environment, the same pass-through `os.Expand` the teacher's own
// loader applies before handing bytes to the YAML parser.
func ExpandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), os.Getenv))
}
