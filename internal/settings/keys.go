package settings

// Well-known setting keys, per the component design's table. Every one of
// these may be overridden via the matching environment variable of the
// same name.
const (
	KeyBodhiHome   = "BODHI_HOME"
	KeyBodhiHost   = "BODHI_HOST"
	KeyBodhiPort   = "BODHI_PORT"
	KeyBodhiScheme = "BODHI_SCHEME"

	KeyPublicScheme = "BODHI_PUBLIC_SCHEME"
	KeyPublicHost   = "BODHI_PUBLIC_HOST"
	KeyPublicPort   = "BODHI_PUBLIC_PORT"

	KeyHfHome = "HF_HOME"

	KeyLogs      = "BODHI_LOGS"
	KeyLogLevel  = "BODHI_LOG_LEVEL"
	KeyLogStdout = "BODHI_LOG_STDOUT"

	KeyExecLookupPath = "BODHI_EXEC_LOOKUP_PATH"
	KeyExecVariant    = "BODHI_EXEC_VARIANT"
	KeyExecTarget     = "BODHI_EXEC_TARGET"
	KeyExecName       = "BODHI_EXEC_NAME"
	KeyExecVariants   = "BODHI_EXEC_VARIANTS"

	KeyKeepAliveSecs = "BODHI_KEEP_ALIVE_SECS"
	KeyLlamacppArgs  = "BODHI_LLAMACPP_ARGS"

	KeyAuthURL   = "BODHI_AUTH_URL"
	KeyAuthRealm = "BODHI_AUTH_REALM"

	KeyEncryptionKey = "BODHI_ENCRYPTION_KEY"
	KeyDevProxyUI    = "BODHI_DEV_PROXY_UI"

	KeyHfToken = "HF_TOKEN"
)

// DefaultSettings are the built-in, lowest-precedence values for keys
// that have a sensible default independent of the install location.
func DefaultSettings() map[string]string {
	return map[string]string{
		KeyBodhiHost:     "localhost",
		KeyBodhiPort:     "1135",
		KeyBodhiScheme:   "http",
		KeyLogLevel:      "info",
		KeyLogStdout:     "false",
		KeyKeepAliveSecs: "300",
		KeyAuthRealm:     "bodhi",
	}
}
