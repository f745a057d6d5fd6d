package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/stephnangue/steward/logger"
)

// maxResponseBodySize limits response body reads to prevent OOM from large responses
const maxResponseBodySize = 1 << 20 // 1MB

// DefaultCallTimeout bounds every outbound directory call. A call that hits
// the deadline surfaces a ServiceError with its Timeout marker set.
const DefaultCallTimeout = 15 * time.Second

// readLimitedBody reads a response body with a size limit to prevent OOM
func readLimitedBody(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, maxResponseBodySize))
}

// apiRequest describes one HTTP request to the directory service.
type apiRequest struct {
	method     string
	url        string
	body       []byte // nil to omit
	okStatuses []int  // status codes that mean success
	operation  string // for error messages: "createAdminUnit", "bindGroupToAU", ...
}

// ClientConfig configures a directory Client.
type ClientConfig struct {
	// BaseURL of the directory service. Defaults to DefaultBaseURL.
	BaseURL string

	// Tokens supplies bearer credentials for every call.
	Tokens TokenProvider

	// CallTimeout bounds each outbound call. Defaults to DefaultCallTimeout.
	CallTimeout time.Duration

	// HTTPClient to issue requests with. Defaults to a plain client; the
	// per-call deadline comes from CallTimeout, not the client.
	HTTPClient *http.Client

	Logger logger.Logger
}

// Client is the typed wrapper around the directory service's REST surface.
// Each method issues one or two calls and maps any non-success outcome to a
// *ServiceError carrying the upstream status code and body verbatim. There
// are no internal retries: every failure is fatal to the current request.
type Client struct {
	baseURL     string
	tokens      TokenProvider
	callTimeout time.Duration
	httpClient  *http.Client
	logger      logger.Logger
}

// NewClient builds a directory client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:     baseURL,
		tokens:      cfg.Tokens,
		callTimeout: timeout,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}, nil
}

// do executes one directory call under the per-call deadline.
func (c *Client) do(ctx context.Context, apiReq apiRequest) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var bodyReader io.Reader
	if apiReq.body != nil {
		bodyReader = bytes.NewReader(apiReq.body)
	}

	req, err := http.NewRequestWithContext(ctx, apiReq.method, apiReq.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", apiReq.operation, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if apiReq.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Correlation id so upstream failures can be matched to directory-side logs.
	if reqID, idErr := uuid.GenerateUUID(); idErr == nil {
		req.Header.Set("client-request-id", reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, &ServiceError{Operation: apiReq.operation, Timeout: true, Err: err}
		}
		return nil, &ServiceError{Operation: apiReq.operation, Err: err}
	}

	respBody, bodyErr := readLimitedBody(resp.Body)
	resp.Body.Close()

	for _, ok := range apiReq.okStatuses {
		if resp.StatusCode == ok {
			if bodyErr != nil {
				return nil, fmt.Errorf("%s: status %d but failed to read response body: %w",
					apiReq.operation, resp.StatusCode, bodyErr)
			}
			return respBody, nil
		}
	}

	bodyStr := string(respBody)
	if bodyErr != nil {
		bodyStr = fmt.Sprintf("[body read error: %v]", bodyErr)
	}

	if c.logger != nil {
		c.logger.Warn("directory call failed",
			logger.String("operation", apiReq.operation),
			logger.Int("status", resp.StatusCode),
		)
	}

	return nil, &ServiceError{
		Operation:  apiReq.operation,
		StatusCode: resp.StatusCode,
		Body:       bodyStr,
	}
}

// escapeODataString doubles single quotes for use inside an OData filter literal.
func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// FindAdminUnitByName filters the administrative unit collection by exact
// display-name match. Returns nil when no unit carries the name.
func (c *Client) FindAdminUnitByName(ctx context.Context, name string) (*AdministrativeUnit, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("displayName eq '%s'", escapeODataString(name)))

	respBody, err := c.do(ctx, apiRequest{
		method:     http.MethodGet,
		url:        c.baseURL + "/directory/administrativeUnits?" + params.Encode(),
		okStatuses: []int{http.StatusOK},
		operation:  "findAdminUnitByName",
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []AdministrativeUnit `json:"value"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("findAdminUnitByName: failed to decode response: %w", err)
	}

	if len(result.Value) == 0 {
		return nil, nil
	}
	return &result.Value[0], nil
}

// CreateAdminUnit creates an administrative unit, or returns the existing one
// when a unit with the same display name is already present (idempotent
// find-or-create). The find and the create are not atomic: two concurrent
// calls for the same name can race between them and each create a unit. The
// directory offers no compare-and-create for administrative units, so the
// find-before-create lookup is the only duplicate guard.
func (c *Client) CreateAdminUnit(ctx context.Context, name, requestingAdmin string) (*AdministrativeUnit, error) {
	existing, err := c.FindAdminUnitByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if c.logger != nil {
			c.logger.Debug("administrative unit already exists",
				logger.String("name", name),
				logger.String("au_id", existing.ID),
			)
		}
		return existing, nil
	}

	body, _ := json.Marshal(map[string]any{
		"displayName": name,
		"description": fmt.Sprintf("AU managed by %s", requestingAdmin),
		"visibility":  "Public",
	})

	respBody, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        c.baseURL + "/directory/administrativeUnits",
		body:       body,
		okStatuses: []int{http.StatusCreated},
		operation:  "createAdminUnit",
	})
	if err != nil {
		return nil, err
	}

	var au AdministrativeUnit
	if err := json.Unmarshal(respBody, &au); err != nil {
		return nil, fmt.Errorf("createAdminUnit: failed to decode response: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("created administrative unit",
			logger.String("name", au.DisplayName),
			logger.String("au_id", au.ID),
		)
	}
	return &au, nil
}

// CreateGroup creates a security-enabled group named GroupNamePrefix+name,
// seeded with owner, then binds it into the administrative unit's membership
// collection. When the bind fails the group already exists un-bound in the
// directory; that partial state is not rolled back and the bind failure is
// surfaced as-is.
func (c *Client) CreateGroup(ctx context.Context, name, auID, owner string) (*Group, error) {
	groupName := GroupNamePrefix + name

	body, _ := json.Marshal(map[string]any{
		"displayName":     groupName,
		"mailNickname":    mailNickname(groupName),
		"mailEnabled":     false,
		"securityEnabled": true,
		"owners@odata.bind": []string{
			fmt.Sprintf("%s/users/%s", c.baseURL, owner),
		},
	})

	respBody, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        c.baseURL + "/groups",
		body:       body,
		okStatuses: []int{http.StatusCreated},
		operation:  "createGroup",
	})
	if err != nil {
		return nil, err
	}

	var group Group
	if err := json.Unmarshal(respBody, &group); err != nil {
		return nil, fmt.Errorf("createGroup: failed to decode response: %w", err)
	}

	if err := c.AddGroupToAU(ctx, group.ID, auID); err != nil {
		return nil, err
	}

	group.AUID = auID

	if c.logger != nil {
		c.logger.Info("created group",
			logger.String("name", group.DisplayName),
			logger.String("group_id", group.ID),
			logger.String("au_id", auID),
		)
	}
	return &group, nil
}

// mailNickname derives a mail nickname from a display name. The directory
// rejects spaces and most punctuation in nicknames.
func mailNickname(displayName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(displayName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "group"
	}
	return b.String()
}

// CreateAppRegistration provisions an application identity scoped to an
// administrative unit: application object, password credential, service
// principal, and a Directory Writers role assignment scoped to the unit.
// Any failing step aborts the remaining ones; prior steps' side effects
// (e.g. an application with no service principal) are not rolled back.
func (c *Client) CreateAppRegistration(ctx context.Context, auID string) (*AppRegistration, error) {
	// Step 1: application object, single-tenant sign-in audience.
	appBody, _ := json.Marshal(map[string]any{
		"displayName":    fmt.Sprintf("AppReg-AU-%s", auID),
		"signInAudience": "AzureADMyOrg",
	})

	respBody, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        c.baseURL + "/applications",
		body:       appBody,
		okStatuses: []int{http.StatusCreated},
		operation:  "createApplication",
	})
	if err != nil {
		return nil, err
	}

	var app struct {
		ID    string `json:"id"`
		AppID string `json:"appId"`
	}
	if err := json.Unmarshal(respBody, &app); err != nil {
		return nil, fmt.Errorf("createApplication: failed to decode response: %w", err)
	}

	// Step 2: password credential. secretText is one-time-visible.
	pwBody, _ := json.Marshal(map[string]any{
		"passwordCredential": map[string]any{
			"displayName": fmt.Sprintf("steward-provisioned-%d", time.Now().Unix()),
		},
	})

	respBody, err = c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        fmt.Sprintf("%s/applications/%s/addPassword", c.baseURL, app.ID),
		body:       pwBody,
		okStatuses: []int{http.StatusOK},
		operation:  "addPassword",
	})
	if err != nil {
		return nil, err
	}

	var pw struct {
		SecretText string `json:"secretText"`
	}
	if err := json.Unmarshal(respBody, &pw); err != nil {
		return nil, fmt.Errorf("addPassword: failed to decode response: %w", err)
	}

	// Step 3: service principal for the application.
	spBody, _ := json.Marshal(map[string]any{"appId": app.AppID})

	respBody, err = c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        c.baseURL + "/servicePrincipals",
		body:       spBody,
		okStatuses: []int{http.StatusCreated},
		operation:  "createServicePrincipal",
	})
	if err != nil {
		return nil, err
	}

	var sp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &sp); err != nil {
		return nil, fmt.Errorf("createServicePrincipal: failed to decode response: %w", err)
	}

	// Step 4: Directory Writers role assignment scoped to the unit.
	assignment := RoleAssignment{
		PrincipalID:      sp.ID,
		RoleDefinitionID: DirectoryWritersRoleID,
		DirectoryScopeID: "/directory/administrativeUnits/" + auID,
	}
	raBody, _ := json.Marshal(assignment)

	respBody, err = c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        c.baseURL + "/roleManagement/directory/roleAssignments",
		body:       raBody,
		okStatuses: []int{http.StatusCreated},
		operation:  "createRoleAssignment",
	})
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(respBody, &assignment); err != nil {
		return nil, fmt.Errorf("createRoleAssignment: failed to decode response: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("created app registration",
			logger.String("app_id", app.AppID),
			logger.String("au_id", auID),
		)
	}

	return &AppRegistration{
		AppID:              app.AppID,
		ClientID:           app.ID,
		ClientSecret:       pw.SecretText,
		ServicePrincipalID: sp.ID,
		AUID:               auID,
		RoleAssignment:     &assignment,
	}, nil
}

// ListScopedRoleMembers lists the scoped-role membership of an administrative unit.
func (c *Client) ListScopedRoleMembers(ctx context.Context, auID string) ([]ScopedRoleMember, error) {
	respBody, err := c.do(ctx, apiRequest{
		method:     http.MethodGet,
		url:        fmt.Sprintf("%s/directory/administrativeUnits/%s/scopedRoleMembers", c.baseURL, auID),
		okStatuses: []int{http.StatusOK},
		operation:  "listScopedRoleMembers",
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []ScopedRoleMember `json:"value"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("listScopedRoleMembers: failed to decode response: %w", err)
	}
	return result.Value, nil
}

// IsUserAdminOfAU reports whether userUPN holds a scoped role on the unit.
// The comparison is case-insensitive. A failed lookup propagates as an
// error, never as "not admin".
func (c *Client) IsUserAdminOfAU(ctx context.Context, userUPN, auID string) (bool, error) {
	members, err := c.ListScopedRoleMembers(ctx, auID)
	if err != nil {
		return false, err
	}

	for _, m := range members {
		if strings.EqualFold(m.RoleMemberInfo.UserPrincipalName, userUPN) {
			return true, nil
		}
	}
	return false, nil
}

// AddGroupToAU binds a group into an administrative unit's membership collection.
func (c *Client) AddGroupToAU(ctx context.Context, groupID, auID string) error {
	body, _ := json.Marshal(map[string]string{
		"@odata.id": fmt.Sprintf("%s/directoryObjects/%s", c.baseURL, groupID),
	})

	_, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        fmt.Sprintf("%s/directory/administrativeUnits/%s/members/$ref", c.baseURL, auID),
		body:       body,
		okStatuses: []int{http.StatusNoContent},
		operation:  "bindGroupToAU",
	})
	return err
}

// RemoveGroupFromAU removes the membership edge between a group and an
// administrative unit. The group object itself is untouched.
func (c *Client) RemoveGroupFromAU(ctx context.Context, groupID, auID string) error {
	_, err := c.do(ctx, apiRequest{
		method:     http.MethodDelete,
		url:        fmt.Sprintf("%s/directory/administrativeUnits/%s/members/%s/$ref", c.baseURL, auID, groupID),
		okStatuses: []int{http.StatusNoContent},
		operation:  "unbindGroupFromAU",
	})
	return err
}

// AddMembersToGroup adds users to a group's membership in a single call.
func (c *Client) AddMembersToGroup(ctx context.Context, groupID string, members []string) error {
	refs := make([]string, 0, len(members))
	for _, m := range members {
		refs = append(refs, fmt.Sprintf("%s/users/%s", c.baseURL, m))
	}
	body, _ := json.Marshal(map[string]any{
		"members@odata.bind": refs,
	})

	_, err := c.do(ctx, apiRequest{
		method:     http.MethodPatch,
		url:        fmt.Sprintf("%s/groups/%s", c.baseURL, groupID),
		body:       body,
		okStatuses: []int{http.StatusNoContent},
		operation:  "addMembersToGroup",
	})
	return err
}

// AddAdminToAU grants adminUPN a Directory Writers scoped role on the unit.
// Two calls: resolve the user's object id, then create the scoped role
// membership.
func (c *Client) AddAdminToAU(ctx context.Context, auID, adminUPN string) error {
	respBody, err := c.do(ctx, apiRequest{
		method:     http.MethodGet,
		url:        fmt.Sprintf("%s/users/%s?$select=id,userPrincipalName", c.baseURL, url.PathEscape(adminUPN)),
		okStatuses: []int{http.StatusOK},
		operation:  "resolveUser",
	})
	if err != nil {
		return err
	}

	var user Identity
	if err := json.Unmarshal(respBody, &user); err != nil {
		return fmt.Errorf("resolveUser: failed to decode response: %w", err)
	}

	body, _ := json.Marshal(map[string]any{
		"roleId": DirectoryWritersRoleID,
		"roleMemberInfo": map[string]string{
			"id": user.ID,
		},
	})

	_, err = c.do(ctx, apiRequest{
		method:     http.MethodPost,
		url:        fmt.Sprintf("%s/directory/administrativeUnits/%s/scopedRoleMembers", c.baseURL, auID),
		body:       body,
		okStatuses: []int{http.StatusCreated},
		operation:  "addScopedRoleMember",
	})
	return err
}
