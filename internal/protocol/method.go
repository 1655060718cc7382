package protocol

// Method is the closed set of JSON-RPC methods the server understands.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodToolsList
	MethodToolsCall
	MethodPing
)

var methodNames = map[string]Method{
	"initialize":                MethodInitialize,
	"notifications/initialized": MethodInitialized,
	"tools/list":                MethodToolsList,
	"tools/call":                MethodToolsCall,
	"ping":                      MethodPing,
}

// ParseMethod maps a wire method name to its Method. Anything not listed is MethodUnknown.
func ParseMethod(name string) Method {
	if m, ok := methodNames[name]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	switch m {
	case MethodInitialize:
		return "initialize"
	case MethodInitialized:
		return "notifications/initialized"
	case MethodToolsList:
		return "tools/list"
	case MethodToolsCall:
		return "tools/call"
	case MethodPing:
		return "ping"
	default:
		return "unknown"
	}
}
