// Package config handles loading and validating Gray Logic panel configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional dotenv file for secrets
//   - Overriding with environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Broker credentials and InfluxDB tokens should be set via environment
//     variables or a dotenv file with restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ID)
package config
