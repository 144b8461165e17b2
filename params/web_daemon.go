package params

import "os"

type ListenerConfig struct {
	// Network is one of "tcp", "tcp4", "tcp6" or "unix".
	Network string
	Address string
}

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string
	// Token, if set, is required of devices posting samples or starting and stopping tracking.
	Token string `json:"-"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir:        DatadirRoot,
		ListenerConfig: DefaultWebListenerConfig(),
		Token:          os.Getenv("CATMOTION_WEBD_TOKEN"),
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir: "",
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
	}
}
