package settings

import "os"

// OSEnv is the Config.Env function for production use: a thin
// os.LookupEnv wrapper. kelseyhightower/envconfig is used one layer up,
// in cmd/bodhi, to decode the full BootstrapSnapshot-adjacent process
// flags into a typed struct before the Service is constructed; the
// Service itself only needs this narrow lookup-by-key contract, since
// its whole point is comparing env against the other four layers key by
// key rather than binding to a fixed struct shape.
func OSEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
