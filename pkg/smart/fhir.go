package smart

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"

	"smart/pkg/oauth"
)

// OAuthURIsExtension is the CapabilityStatement security extension listing
// a server's SMART endpoints.
const OAuthURIsExtension = "http://fhir-registry.smarthealthit.org/StructureDefinition/oauth-uris"

func fetchCapabilityStatement(ctx context.Context, client *http.Client, target string) (*fhir.CapabilityStatement, error) {
	body, err := getJSON(ctx, client, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability statement: %w", err)
	}
	cs, err := fhir.UnmarshalCapabilityStatement(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capability statement: %w", err)
	}
	return &cs, nil
}

// CapabilityStatement fetches the server's metadata. The server's name is
// taken from it unless one was set already.
func (s *Server) CapabilityStatement(ctx context.Context) (*fhir.CapabilityStatement, error) {
	cs, err := fetchCapabilityStatement(ctx, s.client, s.resolve("metadata"))
	if err != nil {
		return nil, err
	}
	s.adoptName(cs)
	return cs, nil
}

func (s *Server) adoptName(cs *fhir.CapabilityStatement) {
	var name string
	switch {
	case cs.Name != nil && *cs.Name != "":
		name = *cs.Name
	case cs.Title != nil && *cs.Title != "":
		name = *cs.Title
	default:
		return
	}

	s.mu.Lock()
	if s.name == "" {
		s.name = name
	}
	s.mu.Unlock()
}

// oauthURIs extracts the endpoints from the oauth-uris extension.
func oauthURIs(cs *fhir.CapabilityStatement) (*oauth.Configuration, bool) {
	for _, rest := range cs.Rest {
		if rest.Security == nil {
			continue
		}
		for _, ext := range rest.Security.Extension {
			if ext.Url != OAuthURIsExtension {
				continue
			}
			cfg := &oauth.Configuration{}
			for _, sub := range ext.Extension {
				if sub.ValueUri == nil {
					continue
				}
				switch sub.Url {
				case "authorize":
					cfg.AuthorizationEndpoint = *sub.ValueUri
				case "token":
					cfg.TokenEndpoint = *sub.ValueUri
				case "register":
					cfg.RegistrationEndpoint = *sub.ValueUri
				case "manage":
					cfg.ManagementEndpoint = *sub.ValueUri
				case "introspect":
					cfg.IntrospectionEndpoint = *sub.ValueUri
				case "revoke":
					cfg.RevocationEndpoint = *sub.ValueUri
				}
			}
			return cfg, true
		}
	}
	return nil, false
}

// ReadPatient reads the Patient resource with the given ID.
func (s *Server) ReadPatient(ctx context.Context, id string) (*fhir.Patient, error) {
	body, err := s.Read(ctx, "Patient/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	patient, err := fhir.UnmarshalPatient(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patient %s: %w", id, err)
	}
	return &patient, nil
}

// LaunchPatient reads the patient selected during authorization.
func (s *Server) LaunchPatient(ctx context.Context) (*fhir.Patient, error) {
	id, err := s.LaunchPatientID()
	if err != nil {
		return nil, err
	}
	return s.ReadPatient(ctx, id)
}
