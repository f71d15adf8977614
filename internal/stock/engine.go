// Package stock implements recipe expansion and stock validation/deduction.
//
// Resolution rules:
//  1. manage_stock=true → the product itself is the stock entity.
//  2. recipe-based → consumption flows to the recipe's ingredients,
//     modifier-adjusted, with portion→stock-unit conversion when the
//     ingredient has a yield.
//  3. neither → nothing to validate or deduct.
//
// Stock never goes negative: every deduction floors at zero.
package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
)

// Deduction reasons carried on stock:change events.
const (
	ReasonSale            = "sale"
	ReasonRecipeDeduction = "recipe_deduction"
	ReasonAdminUpdate     = "admin_update"
	ReasonInitialStock    = "initial_stock"
)

// Item is one sale line as seen by the engine.
type Item struct {
	ProductID uuid.UUID
	Quantity  int
	Modifiers model.ModifierList
}

// Shortfall is one itemized stock insufficiency. Required and Available are
// expressed in the same display unit: portions when the ingredient yields
// more than one portion per stock unit, the raw unit otherwise.
type Shortfall struct {
	ProductName    string          `json:"product_name"`
	IngredientName string          `json:"ingredient_name,omitempty"`
	Required       decimal.Decimal `json:"required"`
	Available      decimal.Decimal `json:"available"`
	Unit           string          `json:"unit"`
}

// ValidationResult is the outcome of a batch sufficiency check.
type ValidationResult struct {
	IsValid    bool        `json:"is_valid"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

// Change is one applied stock delta, broadcast as stock:change.
type Change struct {
	ProductID     uuid.UUID
	ProductName   string
	PreviousStock decimal.Decimal
	NewStock      decimal.Decimal
	StockMin      decimal.Decimal
	Unit          string
	Reason        string
	// LowStock marks entities that crossed their minimum on this deduction.
	LowStock bool
}

// Engine validates and deducts stock for batches of sale items.
type Engine struct {
	products repository.ProductRepository
}

func NewEngine(products repository.ProductRepository) *Engine {
	return &Engine{products: products}
}

// Multiplier resolves the consumption multiplier a modifier list applies to
// one ingredient: no entry → 1, excluded → 0, extra → 1+count (count
// defaults to 1 when absent or non-positive).
func Multiplier(mods model.ModifierList, ingredientID uuid.UUID) decimal.Decimal {
	for _, m := range mods {
		if m.IngredientID != ingredientID {
			continue
		}
		switch m.Type {
		case model.ModifierExcluded:
			return decimal.Zero
		case model.ModifierExtra:
			count := 1
			if m.ExtraCount != nil && *m.ExtraCount > 0 {
				count = *m.ExtraCount
			}
			return decimal.NewFromInt(int64(1 + count))
		}
	}
	return decimal.NewFromInt(1)
}

// requirement accumulates the demand one stock entity receives from a batch.
type requirement struct {
	entityID uuid.UUID
	// quantity is always in stock units. Recipe portions convert through
	// the ingredient's yield at the edge, so direct sales and recipe
	// consumption of the same entity sum in one unit.
	quantity     decimal.Decimal
	direct       bool
	viaRecipe    bool
	productNames []string
}

func (r *requirement) addProductName(name string) {
	for _, n := range r.productNames {
		if n == name {
			return
		}
	}
	r.productNames = append(r.productNames, name)
}

// accumulate expands every item through its recipe edges and sums the
// required quantity per stock entity across the whole batch. Returns the
// requirements in first-seen order so deduction is deterministic.
func (e *Engine) accumulate(ctx context.Context, items []Item) ([]*requirement, error) {
	byEntity := make(map[uuid.UUID]*requirement)
	var order []*requirement

	add := func(entityID uuid.UUID, qty decimal.Decimal, direct bool, productName string) {
		req, ok := byEntity[entityID]
		if !ok {
			req = &requirement{entityID: entityID}
			byEntity[entityID] = req
			order = append(order, req)
		}
		if direct {
			req.direct = true
		} else {
			req.viaRecipe = true
		}
		req.quantity = req.quantity.Add(qty)
		req.addProductName(productName)
	}

	for _, item := range items {
		product, err := e.products.FindByID(ctx, item.ProductID)
		if err != nil {
			log.Warn().Str("product_id", item.ProductID.String()).Msg("stock: producto no encontrado, se omite")
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))

		if product.ManageStock {
			add(product.ID, qty, true, product.Name)
			continue
		}

		recipes, err := e.products.RecipesForProduct(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("stock: recetas de %s: %w", product.Name, err)
		}
		for _, recipe := range recipes {
			mult := Multiplier(item.Modifiers, recipe.IngredientID)
			if mult.IsZero() {
				continue
			}
			ingredient, err := e.products.FindByID(ctx, recipe.IngredientID)
			if err != nil {
				log.Warn().Str("ingredient_id", recipe.IngredientID.String()).Msg("stock: ingrediente no encontrado, se omite")
				continue
			}
			units := recipe.QuantityRequired.Mul(qty).Mul(mult)
			if ingredient.YieldPerUnit.GreaterThan(decimal.NewFromInt(1)) {
				units = units.Div(ingredient.YieldPerUnit)
			}
			add(recipe.IngredientID, units, false, product.Name)
		}
	}
	return order, nil
}

// shortfallFor builds the display-unit error record for an insufficient
// entity: portions when the yield is >1, raw units otherwise.
func shortfallFor(req *requirement, entity *model.Product, required decimal.Decimal) Shortfall {
	s := Shortfall{
		ProductName: strings.Join(req.productNames, ", "),
		Required:    required.Round(2),
		Available:   entity.StockCurrent.Round(2),
		Unit:        entity.Unit,
	}
	if s.Unit == "" {
		s.Unit = "unid"
	}
	if req.viaRecipe && !req.direct {
		s.IngredientName = entity.Name
		if entity.YieldPerUnit.GreaterThan(decimal.NewFromInt(1)) {
			s.Required = req.quantity.Mul(entity.YieldPerUnit).Round(2)
			s.Available = entity.StockCurrent.Mul(entity.YieldPerUnit).Floor()
			s.Unit = "porciones"
			if entity.PortionName != nil && *entity.PortionName != "" {
				s.Unit = *entity.PortionName
			}
		}
	}
	return s
}

// Validate checks sufficiency for the whole batch without writing anything.
// It may run pre-transaction as a fast pre-check; the commit path must use
// ValidateAndDeductTx so the check and the write see the same rows.
func (e *Engine) Validate(ctx context.Context, items []Item) (*ValidationResult, error) {
	reqs, err := e.accumulate(ctx, items)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{IsValid: true}
	for _, req := range reqs {
		entity, err := e.products.FindByID(ctx, req.entityID)
		if err != nil {
			log.Warn().Str("ingredient_id", req.entityID.String()).Msg("stock: ingrediente no encontrado, se omite")
			continue
		}
		if !entity.ManageStock {
			continue
		}
		required := req.quantity
		if entity.StockCurrent.LessThan(required) {
			result.Shortfalls = append(result.Shortfalls, shortfallFor(req, entity, required))
		}
	}
	result.IsValid = len(result.Shortfalls) == 0
	return result, nil
}

// ValidateAndDeductTx re-validates and deducts inside the caller's
// transaction, locking every affected product row first so two devices
// selling the last unit serialize instead of both passing validation.
// On shortfall it returns an invalid result and writes nothing; the caller
// must roll back. On success the returned changes carry (previous, new)
// snapshots for broadcasting.
func (e *Engine) ValidateAndDeductTx(ctx context.Context, tx *gorm.DB, items []Item, reason string) (*ValidationResult, []Change, error) {
	reqs, err := e.accumulate(ctx, items)
	if err != nil {
		return nil, nil, err
	}

	type locked struct {
		req      *requirement
		entity   *model.Product
		required decimal.Decimal
	}
	var entities []locked

	result := &ValidationResult{IsValid: true}
	for _, req := range reqs {
		entity, err := e.products.FindForUpdateTx(tx, req.entityID)
		if err != nil {
			log.Warn().Str("entity_id", req.entityID.String()).Msg("stock: entidad no encontrada en descuento, se omite")
			continue
		}
		if !entity.ManageStock {
			continue
		}
		required := req.quantity
		if entity.StockCurrent.LessThan(required) {
			result.Shortfalls = append(result.Shortfalls, shortfallFor(req, entity, required))
			continue
		}
		entities = append(entities, locked{req: req, entity: entity, required: required})
	}

	if len(result.Shortfalls) > 0 {
		result.IsValid = false
		return result, nil, nil
	}

	changes := make([]Change, 0, len(entities))
	for _, l := range entities {
		previous := l.entity.StockCurrent
		newStock := previous.Sub(l.required)
		if newStock.IsNegative() {
			newStock = decimal.Zero
		}
		if err := e.products.DeductStockTx(tx, l.entity.ID, l.required); err != nil {
			return nil, nil, fmt.Errorf("stock: descontando %s: %w", l.entity.Name, err)
		}
		changeReason := reason
		if l.req.viaRecipe && !l.req.direct {
			changeReason = ReasonRecipeDeduction
		}
		changes = append(changes, Change{
			ProductID:     l.entity.ID,
			ProductName:   l.entity.Name,
			PreviousStock: previous,
			NewStock:      newStock,
			StockMin:      l.entity.StockMin,
			Unit:          l.entity.Unit,
			Reason:        changeReason,
			LowStock:      previous.GreaterThan(l.entity.StockMin) && newStock.LessThanOrEqual(l.entity.StockMin),
		})
	}
	return result, changes, nil
}

// CostForItems computes the ingredient cost of a batch: direct products cost
// cost_unit×qty, recipe products the modifier-adjusted proportional cost of
// their ingredients (quantity_required × cost_unit per unit sold).
func (e *Engine) CostForItems(ctx context.Context, items []Item) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range items {
		product, err := e.products.FindByID(ctx, item.ProductID)
		if err != nil {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))

		if product.ManageStock {
			total = total.Add(product.CostUnit.Mul(qty))
			continue
		}

		recipes, err := e.products.RecipesForProduct(ctx, product.ID)
		if err != nil {
			return decimal.Zero, err
		}
		for _, recipe := range recipes {
			mult := Multiplier(item.Modifiers, recipe.IngredientID)
			if mult.IsZero() {
				continue
			}
			ingredient, err := e.products.FindByID(ctx, recipe.IngredientID)
			if err != nil {
				continue
			}
			total = total.Add(ingredient.CostUnit.Mul(recipe.QuantityRequired).Mul(qty).Mul(mult))
		}
	}
	return total, nil
}

// FormatShortfalls renders the itemized shortfall list as the user-facing
// error message devices show at the register.
func FormatShortfalls(shortfalls []Shortfall) string {
	if len(shortfalls) == 0 {
		return ""
	}
	lines := make([]string, 0, len(shortfalls)+1)
	lines = append(lines, "Stock insuficiente:")
	for _, s := range shortfalls {
		if s.IngredientName != "" {
			lines = append(lines, fmt.Sprintf("%s: necesitas %s %s, solo hay %s %s (para %s)",
				s.IngredientName, s.Required, s.Unit, s.Available, s.Unit, s.ProductName))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: necesitas %s %s, solo hay %s %s",
			s.ProductName, s.Required, s.Unit, s.Available, s.Unit))
	}
	return strings.Join(lines, "\n")
}
