// Package config loads the smart CLI configuration.
//
// Configuration is a single YAML file, by default ~/.config/smart/config.yaml.
// A missing file yields the defaults. Example:
//
//	logLevel: info
//	callbackPort: 3000
//	defaultServer: sandbox
//	tokenStorage:
//	  backend: file
//	servers:
//	  - name: sandbox
//	    baseURL: https://launch.smarthealthit.org/v/r4/fhir
//	    clientID: my-app
//	    scopes: [openid, fhirUser, launch/patient, patient/*.read, offline_access]
//
// A server without an issuer is configured from its CapabilityStatement.
package config
