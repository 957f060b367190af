// Package links issues per-supplier response links: signed tokens that let
// a supplier answer a quote without an account, optionally shortened.
package links

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"procurement_backend/platform/apperr"
	"procurement_backend/platform/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose selects the page a link opens.
type Purpose string

const (
	PurposeRespond  Purpose = "respond"
	PurposeRegister Purpose = "register"
)

const (
	respondPath  = "/supplier/quotes/respond"
	registerPath = "/supplier/register"
	tokenIssuer  = "procurement-links"
)

// Claims carried by a response link token.
type Claims struct {
	QuoteID    uuid.UUID `json:"quote_id"`
	SupplierID uuid.UUID `json:"supplier_id"`
	Purpose    Purpose   `json:"purpose"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies link tokens with HS256.
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

func NewIssuer(cfg config.LinkConfig) *Issuer {
	ttl := cfg.GetResponseLinkTTL()
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Issuer{
		secret:  []byte(cfg.GetLinkTokenSecret()),
		ttl:     ttl,
		baseURL: strings.TrimRight(cfg.GetAppBaseURL(), "/"),
		now:     time.Now,
	}
}

// Issue signs a token for one supplier and quote.
func (i *Issuer) Issue(quoteID, supplierID uuid.UUID, purpose Purpose) (string, error) {
	now := i.now()
	claims := Claims{
		QuoteID:    quoteID,
		SupplierID: supplierID,
		Purpose:    purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   supplierID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies a token and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("link expired")
		}
		return nil, apperr.Unauthorized("invalid link")
	}
	if !token.Valid || claims.QuoteID == uuid.Nil || claims.SupplierID == uuid.Nil {
		return nil, apperr.Unauthorized("invalid link")
	}
	return claims, nil
}

// URL builds the front-end URL for a token.
func (i *Issuer) URL(purpose Purpose, token string) string {
	path := respondPath
	if purpose == PurposeRegister {
		path = registerPath
	}
	return i.baseURL + path + "?token=" + url.QueryEscape(token)
}
