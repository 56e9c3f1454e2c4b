package model

// Instrument is a tradable entity as listed by the instrument directory.
type Instrument struct {
	ID          string `json:"symbol" yaml:"symbol"`
	DisplayName string `json:"name" yaml:"name"`
	Exchange    string `json:"exchange" yaml:"exchange"`
	Class       string `json:"series" yaml:"series"`
}

// PriceSeries holds the daily closes of one instrument, oldest first.
type PriceSeries struct {
	Closes []float64
	Latest float64 // live/most-recent quote, 0 when the upstream carried none
	Name   string  // upstream display name, may be empty
}
