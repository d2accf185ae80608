package server

import "encoding/json"

// ServerConfig is a JSON-backed configuration record for the language
// server: a custom UnmarshalJSON supplies defaults (Jobs 4, ProgressMode
// "off") for any field the JSON document omits, covering workspace
// include/ignore patterns and the link driver's tuning knobs.
type ServerConfig struct {
	Root         string   `json:"root"`
	Include      []string `json:"include"`
	Ignore       []string `json:"ignore"`
	OutDir       string   `json:"outDir"`
	Jobs         int      `json:"jobs"`
	ProgressMode string   `json:"progressMode"`
}

// LinterConfig is the batch-linter analogue: it shares Root, Include,
// Ignore, OutDir and Jobs with ServerConfig, has no ProgressMode, and adds
// the output-format template and an Archive field. cmd/stexlint takes its
// settings from command-line flags and does not read this record.
type LinterConfig struct {
	Root    string   `json:"root"`
	Include []string `json:"include"`
	Ignore  []string `json:"ignore"`
	OutDir  string   `json:"outDir"`
	Jobs    int      `json:"jobs"`
	Format  string   `json:"format"`
	Archive string   `json:"archive"`
}

const defaultFormat = "{relative_file}:{line}:{column} {severity} [{code}] {message}"

func (c *ServerConfig) UnmarshalJSON(data []byte) error {
	type alias ServerConfig
	aux := alias{Jobs: 4, ProgressMode: "off"}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = ServerConfig(aux)
	return nil
}

func (c *LinterConfig) UnmarshalJSON(data []byte) error {
	type alias LinterConfig
	aux := alias{Jobs: 4, Format: defaultFormat}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = LinterConfig(aux)
	return nil
}
