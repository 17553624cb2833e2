package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Seann-Moser/oauth2core/oauth/oclient"
	"github.com/Seann-Moser/oauth2core/oauth/scope"
	"github.com/Seann-Moser/oauth2core/utils"
)

func newAuthorizeURICmd() *cobra.Command {
	var (
		endpoint, clientID, redirectURI string
		scopes, state, responseType     string
		pkceMethod                      string
	)
	cmd := &cobra.Command{
		Use:   "authorize-uri",
		Short: "Build an authorization request URI",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p oclient.AuthorizationRequestPreparer
			switch responseType {
			case oclient.ResponseTypeCode:
				c := oclient.NewWebApplicationClient(clientID)
				if pkceMethod != "" {
					verifier, err := c.EnablePKCE(pkceMethod)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "code_verifier: %s\n", verifier)
				}
				p = c
			case oclient.ResponseTypeToken:
				if pkceMethod != "" {
					return fmt.Errorf("--pkce only applies to response type %q", oclient.ResponseTypeCode)
				}
				p = oclient.NewUserAgentClient(clientID)
			default:
				return fmt.Errorf("unsupported response type %q", responseType)
			}
			uri, err := p.PrepareRequestURI(endpoint, redirectURI, scope.Parse(scopes), state)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Authorization endpoint URI")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client identifier")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirection URI (optional)")
	cmd.Flags().StringVar(&scopes, "scope", "", "Space-delimited scopes")
	cmd.Flags().StringVar(&state, "state", "", "Opaque state value")
	cmd.Flags().StringVar(&responseType, "response-type", oclient.ResponseTypeCode, "code or token")
	cmd.Flags().StringVar(&pkceMethod, "pkce", "", "Enable PKCE with the given method (S256 or plain)")
	_ = cmd.MarkFlagRequired("endpoint")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func newTokenBodyCmd() *cobra.Command {
	var (
		grantType, clientID, scopes    string
		code, redirectURI, verifier    string
		username, password, refreshTok string
	)
	cmd := &cobra.Command{
		Use:   "token-body",
		Short: "Build a form-encoded token request body",
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []utils.Param
			if clientID != "" && grantType != oclient.GrantTypeAuthorizationCode {
				extra = append(extra, utils.Param{Key: "client_id", Value: clientID})
			}
			sc := scope.Parse(scopes)

			var body string
			var err error
			switch grantType {
			case oclient.GrantTypeAuthorizationCode:
				c := oclient.NewWebApplicationClient(clientID)
				if verifier != "" {
					c.SetCodeVerifier("", verifier)
				}
				body, err = c.PrepareRequestBody("", code, redirectURI)
			case oclient.GrantTypeRefreshToken:
				body, err = oclient.NewClient(clientID).PrepareRefreshBody("", refreshTok, sc, extra...)
			case oclient.GrantTypeClientCredentials:
				body, err = oclient.NewClientCredentialsClient(clientID).PrepareRequestBody("", sc, extra...)
			case oclient.GrantTypePassword:
				body, err = oclient.NewPasswordCredentialsClient(clientID, username, password).PrepareRequestBody("", sc, extra...)
			default:
				return fmt.Errorf("unsupported grant type %q", grantType)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), body)
			return err
		},
	}
	cmd.Flags().StringVar(&grantType, "grant-type", oclient.GrantTypeAuthorizationCode, "authorization_code, refresh_token, client_credentials or password")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client identifier")
	cmd.Flags().StringVar(&scopes, "scope", "", "Space-delimited scopes")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirection URI sent with the authorization request")
	cmd.Flags().StringVar(&verifier, "code-verifier", "", "PKCE code verifier")
	cmd.Flags().StringVar(&username, "username", "", "Resource owner username")
	cmd.Flags().StringVar(&password, "password", "", "Resource owner password")
	cmd.Flags().StringVar(&refreshTok, "refresh-token", "", "Refresh token")
	return cmd
}

// parsedResponse is what the parse commands print.
type parsedResponse struct {
	AccessToken  string            `json:"access_token,omitempty"`
	TokenType    string            `json:"token_type,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresIn    int64             `json:"expires_in,omitempty"`
	Scope        string            `json:"scope,omitempty"`
	ScopeChanged bool              `json:"scope_changed,omitempty"`
	Code         string            `json:"code,omitempty"`
	State        string            `json:"state,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

func printResponse(w io.Writer, r *oclient.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(parsedResponse{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		Scope:        r.Scope.String(),
		ScopeChanged: r.ScopeChanged,
		Code:         r.Code,
		State:        r.State,
		Extra:        r.Extra,
	})
}

func newParseCmd() *cobra.Command {
	var (
		uri, state, scopes string
		implicit           bool
	)
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse the redirect an authorization endpoint sent back",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp *oclient.Response
				err  error
			)
			if implicit {
				resp, err = oclient.NewUserAgentClient("").ParseImplicitResponse(uri, state, scope.Parse(scopes))
			} else {
				resp, err = oclient.NewWebApplicationClient("").ParseAuthorizationResponse(uri, state)
			}
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "Redirect URI received from the server")
	cmd.Flags().StringVar(&state, "state", "", "State sent with the authorization request")
	cmd.Flags().StringVar(&scopes, "scope", "", "Scopes requested, to detect a changed grant")
	cmd.Flags().BoolVar(&implicit, "implicit", false, "Read an implicit grant from the fragment")
	_ = cmd.MarkFlagRequired("uri")
	return cmd
}

func newParseTokenCmd() *cobra.Command {
	var body, scopes string
	cmd := &cobra.Command{
		Use:   "parse-token",
		Short: "Parse a token endpoint JSON response; --body - reads stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if body == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				body = strings.TrimSpace(string(data))
			}
			resp, err := oclient.NewClient("").ParseTokenResponse(body, scope.Parse(scopes))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&body, "body", "-", "Response body")
	cmd.Flags().StringVar(&scopes, "scope", "", "Scopes requested, to detect a changed grant")
	return cmd
}
