// Package config holds the odatad server configuration.
//
// A configuration starts from DefaultServerConfiguration, is overlaid with a
// YAML or JSON file, then with ODATAD_* environment variables, and finally
// with command-line flags:
//
//	cfg, err := config.LoadFromFile("odatad.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// A file needs only the keys it changes:
//
//	port: 9090
//	maxPageSize: 50
//	log:
//	  level: debug
//	seed:
//	  files: ["seed/**/*.yaml"]
package config
