package gateway

// Raw document shapes for the getHomepage response. The vendor is loosely
// typed: booleans arrive as numbers or strings depending on firmware, so
// ambiguous leaves are declared as `any` and coerced in normalize.go.

// HomepageDocument is the full-state document returned by Action=getHomepage.
type HomepageDocument struct {
	Success any             `json:"success"`
	Result  *homepageResult `json:"RESULT"`
}

type homepageResult struct {
	User *rawUser `json:"user"`
}

type rawUser struct {
	Homes []RawHome `json:"homes"`
}

// RawHome is one home in the tree. Mode here is the fallback when a room
// carries no mode of its own.
type RawHome struct {
	Name  string    `json:"name"`
	Mode  any       `json:"mode"` // 0=heating, 1=cooling
	Rooms []RawRoom `json:"rooms"`
}

// RawRoom groups devices and owns the heating/cooling selector.
type RawRoom struct {
	Name    string               `json:"name"`
	Mode    any                  `json:"mode"`
	Devices map[string]RawDevice `json:"devices"` // keyed by device uid
}

// RawDevice is the vendor's per-device record, consumed only by the normalizer.
type RawDevice struct {
	UID              string        `json:"uid"`
	UniqueID         string        `json:"uniqueId"`
	Name             string        `json:"name"`
	Type             string        `json:"type"`
	TempRoom         any           `json:"tempRoom"`
	TempSet          any           `json:"tempSet"`
	Min              any           `json:"min"`
	Max              any           `json:"max"`
	StandBy          rawValueField `json:"standBy"`
	ConnectionStatus rawConnStatus `json:"connectionStatus"`
	Settings         rawSettings   `json:"settings"`
}

type rawValueField struct {
	Value any `json:"value"`
}

type rawConnStatus struct {
	Status any `json:"status"`
}

type rawSettings struct {
	Function rawFunction `json:"function"`
}

type rawFunction struct {
	Value        any                 `json:"value"`
	FieldOptions []rawFunctionOption `json:"fieldOptions"`
}

type rawFunctionOption struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// CommandAck is the acknowledgment payload returned by control actions. The
// exact schema is vendor-defined; only success/failure detection is relied on.
type CommandAck struct {
	Success any `json:"success"`
}
