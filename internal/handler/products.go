package handler

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/exchange"
)

type productResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Enabled  bool    `json:"enabled"`
	Icon     string  `json:"icon"`
	ImageURL string  `json:"imageUrl,omitempty"`
	// ImageSrc is ImageURL resolved to something a browser can load.
	ImageSrc string `json:"imageSrc,omitempty"`
}

type productRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Enabled  *bool           `json:"enabled"`
	Icon     string          `json:"icon"`
	ImageURL *string         `json:"imageUrl"`
}

func (req productRequest) draft(current product.Draft) product.Draft {
	d := product.Draft{
		Name:     req.Name,
		Price:    req.Price,
		Stock:    req.Stock,
		Enabled:  true,
		Icon:     product.LookupIcon(req.Icon),
		ImageURL: current.ImageURL,
	}
	if req.Enabled != nil {
		d.Enabled = *req.Enabled
	}
	if req.ImageURL != nil {
		d.ImageURL = *req.ImageURL
	}
	return d
}

func toProductResponse(p product.Product) productResponse {
	src := p.ImageURL
	if p.HasStoredImage() {
		src = "/api/images/" + p.ImageURL
	}
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.InexactFloat64(),
		Stock:    p.Stock,
		Enabled:  p.Enabled,
		Icon:     p.Icon.String(),
		ImageURL: p.ImageURL,
		ImageSrc: src,
	}
}

func toProductResponses(products []product.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	return out
}

// ListProducts returns the whole catalog, disabled products included.
func (h *Handler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toProductResponses(h.catalog.List()))
}

// ListVisibleProducts returns the products offered on the sale screen.
func (h *Handler) ListVisibleProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toProductResponses(h.catalog.Visible()))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), req.draft(product.Draft{}))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct replaces the editable fields. An absent imageUrl keeps the
// current image.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	current, err := h.catalog.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req productRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), id, req.draft(product.DraftOf(current)))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadProductImage takes the raw image as the request body.
func (h *Handler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		h.fail(w, r, badRequest("content type must be an image"))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "read image"))
		return
	}
	if len(data) == 0 {
		h.fail(w, r, badRequest("empty image"))
		return
	}

	p, err := h.catalog.SetImage(r.Context(), r.PathValue("id"), ct, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// GetImage serves a stored product image as binary.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !product.IsImageKey(key) {
		h.fail(w, r, product.ErrImageNotFound)
		return
	}
	uri, err := h.catalog.Image(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ct, data, ok := parseDataURI(uri)
	if !ok {
		h.fail(w, r, errors.Errorf("stored image %s is not a data URI", key))
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = w.Write(data)
}

// parseDataURI decodes base64 data URIs as produced by product.DataURI.
func parseDataURI(uri string) (string, []byte, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, false
	}
	ct, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ct, data, true
}

// ExportProducts downloads the catalog as JSON. With inline=true stored
// images are embedded so the file can move to another till.
func (h *Handler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	var resolve exchange.ImageResolver
	if r.URL.Query().Get("inline") == "true" {
		resolve = exchange.InlineImages(h.catalog.Image)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="products.json"`)
	if err := exchange.ExportProducts(r.Context(), w, h.catalog.List(), resolve); err != nil {
		h.fail(w, r, err)
	}
}

// ImportProducts replaces the catalog with the uploaded product file. An
// invalid file leaves the catalog untouched.
func (h *Handler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	drafts, err := exchange.ImportProducts(http.MaxBytesReader(w, r.Body, h.maxImport))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	products, err := h.catalog.Replace(r.Context(), drafts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

type iconResponse struct {
	Name string `json:"name"`
}

// ListIcons returns the icon names accepted on products.
func (h *Handler) ListIcons(w http.ResponseWriter, _ *http.Request) {
	icons := product.Icons()
	out := make([]iconResponse, len(icons))
	for i, ic := range icons {
		out[i] = iconResponse{Name: ic.String()}
	}
	writeJSON(w, http.StatusOK, out)
}
