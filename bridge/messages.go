package bridge

// Commands understood or emitted by the bridge. Every message is a JSON
// object with a "command" field.
const (
	// host -> core
	CommandSetShader = "setShader"
	CommandPlay      = "play"
	CommandStop      = "stop"
	CommandSeek      = "seek"
	CommandSetLoop   = "setLoop"
	CommandSetGain   = "setGain"
	CommandSetWindow = "setWindow"
	CommandStatus    = "status"

	// core -> host
	CommandLoaded      = "loaded"
	CommandRendered    = "rendered"
	CommandError       = "error"
	CommandDiagnostics = "diagnostics"
)

// Message is the single envelope for both directions. Optional numeric and
// boolean fields are pointers so that zero values survive the round trip.
type Message struct {
	Command string `json:"command"`

	Shader string   `json:"shader,omitempty"`
	Time   *float64 `json:"time,omitempty"`
	Loop   *bool    `json:"loop,omitempty"`
	Gain   *float64 `json:"gain,omitempty"`
	Start  *float64 `json:"start,omitempty"`
	End    *float64 `json:"end,omitempty"`

	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Status   *Status `json:"status,omitempty"`
}

// Status mirrors transport.State plus the session identity.
type Status struct {
	Session  string  `json:"session"`
	Ready    bool    `json:"ready"`
	Loading  bool    `json:"loading"`
	Playing  bool    `json:"playing"`
	Seeking  bool    `json:"seeking"`
	Loop     bool    `json:"loop"`
	Position float64 `json:"position"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Gain     float64 `json:"gain"`
	Duration float64 `json:"duration"`
}

func Float(v float64) *float64 { return &v }
func Bool(v bool) *bool        { return &v }
