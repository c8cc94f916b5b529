// Package config loads and validates automata configuration.
//
// Values come from built-in defaults, then a YAML file, then GRAYLOGIC_*
// environment variables. Secrets (JWT secret, MQTT and Redis passwords,
// InfluxDB token) should be supplied through the environment.
//
//	cfg, err := config.Load("configs/automata.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Engine.Store)
package config
