// Package config holds the server's startup configuration: CLI flags
// parsed once in cmd/mywebserver and handed by value to the reactor,
// plus the process-wide read-only values spec.md §3 calls "Global state"
// (document root, edge-triggered flag). One file, flat fields, no
// reflection-based manager -- matching the teacher's style of small,
// single-purpose files (internal/socket.go, internal/epoll.go) rather
// than searchktools-fast-server's generic watched key/value Manager,
// which would be the wrong shape for a fixed set of startup knobs.
package config

// TriggerMode selects the level/edge-triggered combination used for the
// listening socket and for accepted connection sockets, per spec.md §4.6.
type TriggerMode int

const (
	// LTLT: listen socket and connection sockets are both level-triggered.
	LTLT TriggerMode = iota
	// ETConn: listen socket level-triggered, connections edge-triggered.
	ETConn
	// ETListen: listen socket edge-triggered, connections level-triggered.
	ETListen
	// ETBoth: both edge-triggered.
	ETBoth
)

// ListenEdgeTriggered reports whether the listening socket should be
// armed with EPOLLET under this mode.
func (m TriggerMode) ListenEdgeTriggered() bool {
	return m == ETListen || m == ETBoth
}

// ConnEdgeTriggered reports whether accepted connections should be armed
// with EPOLLET under this mode.
func (m TriggerMode) ConnEdgeTriggered() bool {
	return m == ETConn || m == ETBoth
}

// MaxFD is the maximum number of simultaneously open connections
// (spec.md §4.6); accepts past this limit get "Server busy!" and a close.
const MaxFD = 65536

// Config collects every startup knob spec.md §6 lists.
type Config struct {
	Port          int
	Trigger       TriggerMode
	IdleTimeoutMS int // 0 disables timing

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBPoolSize int

	WorkerCount int

	LogEnable   bool
	LogLevel    int // 0..3
	LogQueueCap int
	LogDir      string
	LogSuffix   string

	// DocRoot is the filesystem document root serving static files and
	// error pages, spec.md §6: "<cwd>/resources/".
	DocRoot string
}

// Default returns a Config matching the teacher's hardcoded defaults,
// suitable as a base before flag overrides are applied.
func Default() Config {
	return Config{
		Port:          1316,
		Trigger:       ETBoth,
		IdleTimeoutMS: 60000,
		DBPort:        3306,
		DBPoolSize:    8,
		WorkerCount:   8,
		LogEnable:     true,
		LogLevel:      1,
		LogQueueCap:   1024,
		LogDir:        "./log",
		LogSuffix:     ".log",
		DocRoot:       "./resources",
	}
}
