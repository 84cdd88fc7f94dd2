package query

import (
	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/domain/repository"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// ListPendingQuery reads the orders still awaiting backend confirmation.
type ListPendingQuery struct {
	ledger repository.PendingOrderLedger
}

// NewListPendingQuery creates a new list pending query
func NewListPendingQuery(ledger repository.PendingOrderLedger) *ListPendingQuery {
	return &ListPendingQuery{ledger: ledger}
}

// Execute executes the list pending query
func (q *ListPendingQuery) Execute() *dto.PendingOrdersResponse {
	resp := &dto.PendingOrdersResponse{Orders: []dto.PendingOrderDTO{}}
	for order := range q.ledger.All() {
		resp.Orders = append(resp.Orders, dto.PendingOrderDTO{
			TransactionID: order.TransactionID,
			ProductID:     order.Product.ID,
			ProductTitle:  order.Product.Title,
			CreatedAt:     order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
		resp.Count++
	}
	return resp
}

// GetCatalogQuery reads the last catalog delivered by the storefront.
type GetCatalogQuery struct {
	flow *service.FlowCoordinator
}

// NewGetCatalogQuery creates a new get catalog query
func NewGetCatalogQuery(flow *service.FlowCoordinator) *GetCatalogQuery {
	return &GetCatalogQuery{flow: flow}
}

// Execute executes the get catalog query
func (q *GetCatalogQuery) Execute() *dto.CatalogResponse {
	resp := &dto.CatalogResponse{Products: []dto.ProductDTO{}}
	for _, p := range q.flow.Catalog() {
		resp.Products = append(resp.Products, dto.ProductDTO{
			ID:    p.ID,
			Title: p.Title,
			Price: p.Price,
			Type:  string(p.Type),
		})
	}
	return resp
}
