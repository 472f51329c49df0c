package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/repository"
)

// ProductService manages each admin's catalogue.
type ProductService struct {
	products ProductStore
	logger   *zap.Logger
}

func NewProductService(products ProductStore, logger *zap.Logger) *ProductService {
	return &ProductService{products: products, logger: logger}
}

// AdminProducts is one admin's catalogue in the grouped listing.
type AdminProducts struct {
	Admin    model.AdminRef  `json:"admin"`
	Products []model.Product `json:"products"`
}

// ProductListing is the tagged union returned by the products listing.
// Exactly one of Items (Flat) or Groups (GroupedByAdmin) is meaningful.
type ProductListing struct {
	Kind   authz.ProductShape
	Items  []model.ProductWithAdmin
	Groups map[string]AdminProducts
}

func (l ProductListing) MarshalJSON() ([]byte, error) {
	if l.Kind == authz.Flat {
		items := l.Items
		if items == nil {
			items = []model.ProductWithAdmin{}
		}
		return json.Marshal(struct {
			Kind  authz.ProductShape       `json:"kind"`
			Items []model.ProductWithAdmin `json:"items"`
		}{l.Kind, items})
	}
	groups := l.Groups
	if groups == nil {
		groups = map[string]AdminProducts{}
	}
	return json.Marshal(struct {
		Kind   authz.ProductShape       `json:"kind"`
		Groups map[string]AdminProducts `json:"groups"`
	}{l.Kind, groups})
}

// List returns the admin's own products flat, or every admin's products
// grouped by admin for anyone else (including anonymous callers).
func (s *ProductService) List(ctx context.Context, sess *model.SessionUser, includeUnavailable bool) (ProductListing, error) {
	shape := authz.ProductView(sess)
	filter := model.ProductFilter{IncludeUnavailable: includeUnavailable}
	if shape == authz.Flat {
		filter.AdminID = sess.ID
	}
	items, err := s.products.List(ctx, filter)
	if err != nil {
		return ProductListing{}, apperr.Internal(err)
	}
	if shape == authz.Flat {
		return ProductListing{Kind: shape, Items: items}, nil
	}
	groups := make(map[string]AdminProducts)
	for _, p := range items {
		g, ok := groups[p.AdminID]
		if !ok {
			g = AdminProducts{Admin: p.Admin, Products: []model.Product{}}
		}
		g.Products = append(g.Products, p.Product)
		groups[p.AdminID] = g
	}
	return ProductListing{Kind: shape, Groups: groups}, nil
}

// ProductInput is a create-or-update request.  An empty ID creates.
type ProductInput struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Available *bool
	ImageURL  string
}

// Save creates a product owned by the caller, or updates one of the
// caller's products when in.ID is set.  created reports which happened.
func (s *ProductService) Save(ctx context.Context, sess *model.SessionUser, in ProductInput) (p *model.Product, created bool, err error) {
	if err := authz.Authorize(sess, authz.ManageProduct, authz.None); err != nil {
		return nil, false, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, false, apperr.Validation("name is required")
	}
	if in.Price.IsNegative() {
		return nil, false, apperr.Validation("price must not be negative")
	}
	price := in.Price.Round(2)

	if in.ID == "" {
		p = &model.Product{
			AdminID:   sess.ID,
			Name:      in.Name,
			Price:     price,
			Available: in.Available == nil || *in.Available,
			ImageURL:  in.ImageURL,
		}
		if err := s.products.Create(ctx, p); err != nil {
			return nil, false, apperr.Internal(err)
		}
		s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("admin_id", sess.ID))
		return p, true, nil
	}

	p, err = s.products.GetByID(ctx, in.ID)
	if err != nil {
		return nil, false, storeErr(err, "product not found")
	}
	if err := authz.Authorize(sess, authz.ManageProduct, authz.OwnedBy(p.AdminID)); err != nil {
		return nil, false, err
	}
	p.Name, p.Price, p.ImageURL = in.Name, price, in.ImageURL
	if in.Available != nil {
		p.Available = *in.Available
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, false, storeErr(err, "product not found")
	}
	return p, false, nil
}

// Delete removes one of the caller's products.  Products with recorded
// consumption cannot be deleted.
func (s *ProductService) Delete(ctx context.Context, sess *model.SessionUser, id string) error {
	if err := authz.Authorize(sess, authz.ManageProduct, authz.None); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("product id required")
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "product not found")
	}
	if err := authz.Authorize(sess, authz.ManageProduct, authz.OwnedBy(p.AdminID)); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id, sess.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperr.Conflict("product has recorded consumptions; mark it unavailable instead")
		}
		return storeErr(err, "product not found")
	}
	s.logger.Info("product deleted", zap.String("product_id", id), zap.String("admin_id", sess.ID))
	return nil
}
