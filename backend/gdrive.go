package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	driveConfigKey = "youtube-downloader-gdrive-config"

	driveScope     = "https://www.googleapis.com/auth/drive.file"
	folderMimeType = "application/vnd.google-apps.folder"

	// rootFolderName is the top-level Drive folder all uploads land under.
	rootFolderName = "YouTube Downloads"
)

// Subfolder names used when organizeFolders is on. Kept as shipped in the
// original product so existing Drive trees keep working.
var driveSubfolders = map[string]string{
	KindVideo:    "Videos",
	KindAudio:    "Audio",
	KindSubtitle: "Subtítulos",
}

const driveSubfolderDefault = "Otros"

// DriveConfig is the persisted Drive connection state.
type DriveConfig struct {
	Enabled         bool   `json:"enabled"`
	AccessToken     string `json:"accessToken,omitempty"`
	RefreshToken    string `json:"refreshToken,omitempty"`
	FolderID        string `json:"folderId,omitempty"`
	AutoUpload      bool   `json:"autoUpload"`
	OrganizeFolders bool   `json:"organizeFolders"`
}

// DefaultDriveConfig is the disconnected state.
func DefaultDriveConfig() DriveConfig {
	return DriveConfig{Enabled: false, AutoUpload: false, OrganizeFolders: true}
}

// UploadResult crosses the HTTP boundary for every upload, success or not.
// Upload failures are data, never panics or raw errors.
type UploadResult struct {
	Success     bool   `json:"success"`
	FileID      string `json:"fileId,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	WebViewLink string `json:"webViewLink,omitempty"`
	Error       string `json:"error,omitempty"`
}

// UploadMeta describes the uploaded media for folder organization and the
// Drive file description.
type UploadMeta struct {
	Title  string
	Author string
	Type   string
}

// DriveUserInfo is returned by TestConnection.
type DriveUserInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	StorageUsed  string `json:"storageUsed"`
	StorageLimit string `json:"storageLimit"`
}

// DriveStatus is the connection test result.
type DriveStatus struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	UserInfo *DriveUserInfo `json:"userInfo,omitempty"`
}

// DriveClient is a Google Drive v3 API client over plain net/http. Only the
// handful of endpoints this service needs are implemented. Tokens live in the
// persisted DriveConfig; on a 401 the access token is refreshed exactly once
// and the request retried exactly once.
type DriveClient struct {
	clientID     string
	clientSecret string
	redirectURI  string

	store      Store
	httpClient *http.Client

	// Overridable in tests.
	apiBase    string
	uploadBase string
	authBase   string
	tokenURL   string

	mu sync.Mutex
}

// NewDriveClient builds a client from config. The HTTP client honors the
// configured proxy.
func NewDriveClient(cfg *Config, store Store) (*DriveClient, error) {
	httpClient, err := NewHTTPClient(30*time.Second, cfg.ProxyURL)
	if err != nil {
		return nil, err
	}

	return &DriveClient{
		clientID:     cfg.GoogleClientID,
		clientSecret: cfg.GoogleClientSecret,
		redirectURI:  cfg.GoogleRedirectURI,
		store:        store,
		httpClient:   httpClient,
		apiBase:      "https://www.googleapis.com/drive/v3",
		uploadBase:   "https://www.googleapis.com/upload/drive/v3",
		authBase:     "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL:     "https://oauth2.googleapis.com/token",
	}, nil
}

// Config returns the persisted Drive configuration, falling back to the
// disconnected default.
func (c *DriveClient) Config() DriveConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadConfig()
}

func (c *DriveClient) loadConfig() DriveConfig {
	cfg := DefaultDriveConfig()
	if err := c.store.Load(driveConfigKey, &cfg); err != nil {
		return DefaultDriveConfig()
	}
	return cfg
}

func (c *DriveClient) saveConfig(cfg DriveConfig) {
	if err := c.store.Save(driveConfigKey, cfg); err != nil {
		Logger.Error("could not persist drive config", "error", err)
	}
}

// SaveConfig persists client-controlled settings (enabled, autoUpload,
// organizeFolders) without touching stored tokens.
func (c *DriveClient) SaveConfig(update DriveConfig) DriveConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.loadConfig()
	cfg.Enabled = update.Enabled
	cfg.AutoUpload = update.AutoUpload
	cfg.OrganizeFolders = update.OrganizeFolders
	c.saveConfig(cfg)
	return cfg
}

// AuthURL builds the OAuth2 consent URL. access_type=offline with
// prompt=consent forces Google to issue a refresh token.
func (c *DriveClient) AuthURL() string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", driveScope)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")

	return c.authBase + "?" + params.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode trades an authorization code for tokens and enables the
// connection.
func (c *DriveClient) ExchangeCode(ctx context.Context, code string) error {
	if code == "" {
		return &ClassifiedError{
			Kind: ErrInvalidInput,
			Err:  fmt.Errorf("authorization code is required"),
		}
	}

	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("redirect_uri", c.redirectURI)
	data.Set("grant_type", "authorization_code")

	token, err := c.postToken(ctx, data)
	if err != nil {
		return err
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return fmt.Errorf("token exchange returned no usable tokens")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.loadConfig()
	cfg.AccessToken = token.AccessToken
	cfg.RefreshToken = token.RefreshToken
	cfg.Enabled = true
	c.saveConfig(cfg)

	Logger.Info("google drive connected")
	return nil
}

// refreshAccessToken swaps the refresh token for a new access token and
// persists it. Callers must hold c.mu.
func (c *DriveClient) refreshAccessToken(ctx context.Context, cfg *DriveConfig) error {
	if cfg.RefreshToken == "" {
		return &ClassifiedError{
			Kind: ErrAuthFailure,
			Err:  fmt.Errorf("no refresh token stored"),
		}
	}

	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("refresh_token", cfg.RefreshToken)
	data.Set("grant_type", "refresh_token")

	token, err := c.postToken(ctx, data)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token refresh returned no access token")
	}

	cfg.AccessToken = token.AccessToken
	c.saveConfig(*cfg)
	return nil
}

func (c *DriveClient) postToken(ctx context.Context, data url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &token, nil
}

// doRequest makes an authenticated Drive API call. On 401 the token is
// refreshed once and the request rebuilt and retried once; a second 401 is
// surfaced as-is. body may be nil.
func (c *DriveClient) doRequest(ctx context.Context, cfg *DriveConfig, method, rawURL, contentType string, body []byte) (*http.Response, error) {
	resp, err := c.doRequestWithToken(ctx, cfg.AccessToken, method, rawURL, contentType, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.refreshAccessToken(ctx, cfg); err != nil {
			return nil, err
		}
		return c.doRequestWithToken(ctx, cfg.AccessToken, method, rawURL, contentType, body)
	}

	return resp, nil
}

func (c *DriveClient) doRequestWithToken(ctx context.Context, token, method, rawURL, contentType string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

type driveFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	WebViewLink string `json:"webViewLink"`
}

type driveFileList struct {
	Files []driveFile `json:"files"`
}

// findFolder looks up a folder by exact name, optionally under a parent.
// Returns empty id when no folder matches.
func (c *DriveClient) findFolder(ctx context.Context, cfg *DriveConfig, name, parentID string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeDriveQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	endpoint := fmt.Sprintf("%s/files?q=%s&fields=%s",
		c.apiBase, url.QueryEscape(query), url.QueryEscape("files(id,name)"))

	resp, err := c.doRequest(ctx, cfg, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("folder lookup returned %d: %s", resp.StatusCode, string(body))
	}

	var list driveFileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("failed to parse folder list: %w", err)
	}

	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].ID, nil
}

// createFolder creates a folder, optionally under a parent, returning its id.
func (c *DriveClient) createFolder(ctx context.Context, cfg *DriveConfig, name, parentID string) (string, error) {
	meta := map[string]any{
		"name":     name,
		"mimeType": folderMimeType,
	}
	if parentID != "" {
		meta["parents"] = []string{parentID}
	}

	body, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	endpoint := c.apiBase + "/files?fields=id"
	resp, err := c.doRequest(ctx, cfg, http.MethodPost, endpoint, "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("folder create returned %d: %s", resp.StatusCode, string(respBody))
	}

	var f driveFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return "", fmt.Errorf("failed to parse folder response: %w", err)
	}
	return f.ID, nil
}

// ensureFolder finds a folder by name or creates it.
func (c *DriveClient) ensureFolder(ctx context.Context, cfg *DriveConfig, name, parentID string) (string, error) {
	id, err := c.findFolder(ctx, cfg, name, parentID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return c.createFolder(ctx, cfg, name, parentID)
}

// targetFolder resolves where an upload should land: the root folder, and a
// per-kind subfolder when organizeFolders is on. The root folder id is
// cached in the persisted config.
func (c *DriveClient) targetFolder(ctx context.Context, cfg *DriveConfig, meta *UploadMeta) (string, error) {
	folderID := cfg.FolderID
	if folderID == "" {
		id, err := c.ensureFolder(ctx, cfg, rootFolderName, "")
		if err != nil {
			return "", err
		}
		folderID = id
		cfg.FolderID = id
		c.saveConfig(*cfg)
	}

	if !cfg.OrganizeFolders || meta == nil {
		return folderID, nil
	}

	name, ok := driveSubfolders[meta.Type]
	if !ok {
		name = driveSubfolderDefault
	}

	subID, err := c.ensureFolder(ctx, cfg, name, folderID)
	if err != nil {
		// Organization is best-effort; fall back to the root folder.
		Logger.Warn("could not ensure drive subfolder", "name", name, "error", err)
		return folderID, nil
	}
	return subID, nil
}

// Upload sends a file to Drive as a multipart/related upload. All failures
// come back as UploadResult{Success: false}; this method never panics and
// never returns a Go error across the handler boundary.
func (c *DriveClient) Upload(ctx context.Context, data []byte, fileName, mimeType string, meta *UploadMeta) UploadResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.loadConfig()
	if !cfg.Enabled || (cfg.AccessToken == "" && cfg.RefreshToken == "") {
		return UploadResult{Success: false, Error: "Google Drive is not configured"}
	}

	targetID, err := c.targetFolder(ctx, &cfg, meta)
	if err != nil {
		Logger.Error("drive folder resolution failed", "error", err)
		return UploadResult{Success: false, Error: Classify(err).UserMessage()}
	}

	fileMeta := map[string]any{"name": fileName}
	if targetID != "" {
		fileMeta["parents"] = []string{targetID}
	}
	if meta != nil {
		fileMeta["description"] = uploadDescription(meta)
	}

	body, contentType, err := multipartRelated(fileMeta, mimeType, data)
	if err != nil {
		return UploadResult{Success: false, Error: err.Error()}
	}

	endpoint := c.uploadBase + "/files?uploadType=multipart&fields=" +
		url.QueryEscape("id,name,webViewLink")

	resp, err := c.doRequest(ctx, &cfg, http.MethodPost, endpoint, contentType, body)
	if err != nil {
		Logger.Error("drive upload failed", "error", err)
		return UploadResult{Success: false, Error: Classify(err).UserMessage()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		Logger.Error("drive upload rejected",
			"status", resp.StatusCode, "body", firstLine(string(respBody)))
		return UploadResult{
			Success: false,
			Error:   fmt.Sprintf("Drive upload failed with status %d", resp.StatusCode),
		}
	}

	var f driveFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return UploadResult{Success: false, Error: "could not parse Drive response"}
	}

	Logger.Info("uploaded to drive", "file_id", f.ID, "name", f.Name)
	return UploadResult{
		Success:     true,
		FileID:      f.ID,
		FileName:    f.Name,
		WebViewLink: f.WebViewLink,
	}
}

// uploadDescription renders the Drive file description from media metadata.
func uploadDescription(meta *UploadMeta) string {
	var lines []string
	if meta.Title != "" {
		lines = append(lines, "Title: "+meta.Title)
	}
	if meta.Author != "" {
		lines = append(lines, "Channel: "+meta.Author)
	}
	lines = append(lines, "Downloaded: "+time.Now().Format("2006-01-02 15:04:05"))
	return strings.Join(lines, "\n")
}

// multipartRelated builds the two-part body Drive's multipart upload wants:
// a JSON metadata part followed by the media bytes.
func multipartRelated(meta map[string]any, mimeType string, data []byte) ([]byte, string, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	contentType := fmt.Sprintf("multipart/related; boundary=%s", w.Boundary())
	return buf.Bytes(), contentType, nil
}

// TestConnection verifies the stored tokens by fetching account info.
func (c *DriveClient) TestConnection(ctx context.Context) DriveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.loadConfig()
	if !cfg.Enabled || (cfg.AccessToken == "" && cfg.RefreshToken == "") {
		return DriveStatus{Success: false, Error: "Google Drive is not configured"}
	}

	endpoint := c.apiBase + "/about?fields=" +
		url.QueryEscape("user(displayName,emailAddress),storageQuota(limit,usage)")

	resp, err := c.doRequest(ctx, &cfg, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return DriveStatus{Success: false, Error: Classify(err).UserMessage()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		Logger.Warn("drive connection test rejected",
			"status", resp.StatusCode, "body", firstLine(string(body)))
		return DriveStatus{
			Success: false,
			Error:   fmt.Sprintf("Drive returned status %d", resp.StatusCode),
		}
	}

	var about struct {
		User struct {
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
		} `json:"user"`
		StorageQuota struct {
			Limit string `json:"limit"`
			Usage string `json:"usage"`
		} `json:"storageQuota"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&about); err != nil {
		return DriveStatus{Success: false, Error: "could not parse Drive response"}
	}

	return DriveStatus{
		Success: true,
		UserInfo: &DriveUserInfo{
			Name:         about.User.DisplayName,
			Email:        about.User.EmailAddress,
			StorageUsed:  about.StorageQuota.Usage,
			StorageLimit: about.StorageQuota.Limit,
		},
	}
}

// Disconnect wipes tokens and resets the config to the disconnected default.
func (c *DriveClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.saveConfig(DefaultDriveConfig())
	Logger.Info("google drive disconnected")
}

// escapeDriveQuery escapes special characters in Drive query strings.
func escapeDriveQuery(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}
