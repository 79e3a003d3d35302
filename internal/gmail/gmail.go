// Package gmail implements the optional Gmail integration: the OAuth
// connection lifecycle (auth URL, code exchange, status, disconnect) and
// draft creation through the Gmail API. Tokens live in the gmail_tokens
// table and are refreshed transparently on use.
package gmail

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/repo"
)

// Sentinel errors surfaced to handlers.
var (
	ErrNotEnabled   = errors.New("gmail integration is not enabled")
	ErrNotConnected = errors.New("gmail is not connected")
	ErrBadState     = errors.New("invalid or expired oauth state")
)

// stateMaxAge bounds how long an issued OAuth state stays valid.
const stateMaxAge = 10 * time.Minute

var defaultScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/gmail.compose",
}

const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Config holds the OAuth client settings. Enabled gates the whole feature;
// with it off every operation reports ErrNotEnabled.
type Config struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURI  string
	StateSecret  string
}

// Service wires the OAuth client to token persistence.
type Service struct {
	cfg Config
	db  *gorm.DB
	now func() time.Time
}

// New builds a Service over the given database handle.
func New(cfg Config, db *gorm.DB) *Service {
	return &Service{cfg: cfg, db: db, now: time.Now}
}

// Enabled reports whether the integration is switched on and fully
// configured with OAuth credentials.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled && s.cfg.ClientID != "" && s.cfg.ClientSecret != ""
}

func (s *Service) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		RedirectURL:  s.cfg.RedirectURI,
		Scopes:       defaultScopes,
		Endpoint:     google.Endpoint,
	}
}

// signState produces "timestamp.hmac" so the callback can verify the state
// came from this process without server-side session storage.
func (s *Service) signState(ts time.Time) string {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(s.cfg.StateSecret))
	mac.Write([]byte("gmail_oauth:" + stamp))
	return stamp + "." + hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) verifyState(state string) error {
	stamp, sig, ok := strings.Cut(state, ".")
	if !ok {
		return ErrBadState
	}
	sec, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return ErrBadState
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.StateSecret))
	mac.Write([]byte("gmail_oauth:" + stamp))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrBadState
	}
	if s.now().Sub(time.Unix(sec, 0)) > stateMaxAge {
		return ErrBadState
	}
	return nil
}

// AuthURL returns the Google consent URL plus the signed state embedded in it.
func (s *Service) AuthURL() (url, state string, err error) {
	if !s.Enabled() {
		return "", "", ErrNotEnabled
	}
	state = s.signState(s.now())
	url = s.oauthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	return url, state, nil
}

// Exchange trades the authorization code for tokens, resolves the account's
// email address and persists the credentials. It returns the connected email.
func (s *Service) Exchange(ctx context.Context, code, state string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotEnabled
	}
	if err := s.verifyState(state); err != nil {
		return "", err
	}

	conf := s.oauthConfig()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("no access token returned by google oauth")
	}

	email, err := fetchEmail(ctx, conf, tok)
	if err != nil {
		return "", err
	}

	scopes, _ := json.Marshal(defaultScopes)
	rec := &domain.GmailToken{
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     google.Endpoint.TokenURL,
		ScopesJSON:   string(scopes),
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		rec.Expiry = &exp
	}
	if _, err := repo.UpsertGmailToken(ctx, s.db, rec); err != nil {
		return "", err
	}
	return email, nil
}

func fetchEmail(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (string, error) {
	resp, err := conf.Client(ctx, tok).Get(userinfoURL)
	if err != nil {
		return "", fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var info struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("could not retrieve email from google account")
	}
	return info.Email, nil
}

// Status describes the current connection for the status endpoint.
type Status struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Email     string `json:"email,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CurrentStatus reports whether the integration is enabled and connected.
func (s *Service) CurrentStatus(ctx context.Context) (Status, error) {
	if !s.Enabled() {
		return Status{Enabled: false, Connected: false, Message: "Gmail integration is not enabled"}, nil
	}
	tok, err := repo.LatestGmailToken(ctx, s.db)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Status{Enabled: true, Connected: false}, nil
		}
		return Status{}, err
	}
	return Status{Enabled: true, Connected: true, Email: tok.Email}, nil
}

// Disconnect deletes every stored credential.
func (s *Service) Disconnect(ctx context.Context) (int64, error) {
	return repo.DeleteGmailTokens(ctx, s.db)
}

// tokenSource returns a refreshing token source for the stored credentials,
// persisting any refreshed access token.
func (s *Service) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	rec, err := repo.LatestGmailToken(ctx, s.db)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
	}
	if rec.Expiry != nil {
		tok.Expiry = *rec.Expiry
	}

	base := s.oauthConfig().TokenSource(ctx, tok)
	return oauth2.ReuseTokenSource(tok, &persistingSource{svc: s, email: rec.Email, ctx: ctx, base: base, last: tok.AccessToken}), nil
}

// persistingSource writes refreshed access tokens back to storage so the
// next process start does not need another refresh round-trip.
type persistingSource struct {
	svc   *Service
	email string
	ctx   context.Context
	base  oauth2.TokenSource
	last  string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		rec := &domain.GmailToken{Email: p.email, AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
		if !tok.Expiry.IsZero() {
			exp := tok.Expiry.UTC()
			rec.Expiry = &exp
		}
		_, _ = repo.UpsertGmailToken(p.ctx, p.svc.db, rec)
	}
	return tok, nil
}

// DraftResult is the outcome of a draft attempt, shaped for API responses.
// Failures set Success=false with Error populated; callers decide whether
// that is fatal.
type DraftResult struct {
	DraftID   string `json:"draft_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// CreateDraft creates a Gmail draft addressed to the customer.
func (s *Service) CreateDraft(ctx context.Context, to, subject, body string) (DraftResult, error) {
	if !s.Enabled() {
		return DraftResult{}, ErrNotEnabled
	}
	ts, err := s.tokenSource(ctx)
	if err != nil {
		return DraftResult{}, err
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return DraftResult{}, fmt.Errorf("build gmail client: %w", err)
	}

	draft, err := svc.Users.Drafts.Create("me", &gmailapi.Draft{
		Message: &gmailapi.Message{Raw: encodeMessage(to, subject, body)},
	}).Context(ctx).Do()
	if err != nil {
		return DraftResult{}, fmt.Errorf("create gmail draft: %w", err)
	}

	res := DraftResult{DraftID: draft.Id, Success: true}
	if draft.Message != nil {
		res.MessageID = draft.Message.Id
	}
	return res, nil
}

// encodeMessage renders an RFC 822 text message and encodes it base64url as
// the Gmail API expects.
func encodeMessage(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

var titleCaser = cases.Title(language.English)

// GenerateSubject derives the default draft subject from the run's intent,
// e.g. pricing_inquiry becomes "Re: Pricing Inquiry". A customer name is
// appended when provided.
func GenerateSubject(intent domain.Intent, customerName string) string {
	base := "Re: Support Request"
	if intent.Valid() {
		base = "Re: " + titleCaser.String(strings.ReplaceAll(string(intent), "_", " "))
	}
	if customerName != "" {
		return base + " - " + customerName
	}
	return base
}
