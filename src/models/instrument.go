package models

// MInstrument is a subscribed broker instrument.
// Calendar is an exchange MIC (e.g. "xlon"); empty means the market never closes.
type MInstrument struct {
	Epic      string `yaml:"epic" json:"epic"`
	Name      string `yaml:"name" json:"name"`
	Precision int32  `yaml:"precision" json:"precision"`
	Calendar  string `yaml:"calendar" json:"calendar,omitempty"`
}
