package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/domain/user"
	"github.com/marketloop/storefront/internal/postgres"
)

func main() {
	var (
		databaseURL string
		adminToken  string
		userToken   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&adminToken, "admin-token", "", "bearer token for the seeded admin (or SHOP_SEED_ADMIN_TOKEN env)")
	flag.StringVar(&userToken, "user-token", "", "bearer token for the seeded demo user (or SHOP_SEED_USER_TOKEN env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminToken == "" {
		adminToken = os.Getenv("SHOP_SEED_ADMIN_TOKEN")
	}
	if adminToken == "" {
		slog.Error("admin token is required: set --admin-token or SHOP_SEED_ADMIN_TOKEN")
		os.Exit(1)
	}
	if userToken == "" {
		userToken = os.Getenv("SHOP_SEED_USER_TOKEN")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, adminToken, userToken); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, adminToken, userToken string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	db := postgres.NewDB(pool)
	return db.RunInTx(ctx, func(ctx context.Context) error {
		categoryIDs, err := seedCategories(ctx, postgres.NewCategoryRepository(db))
		if err != nil {
			return errors.Wrap(err, "seed categories")
		}
		if err := seedProducts(ctx, postgres.NewProductRepository(db), categoryIDs); err != nil {
			return errors.Wrap(err, "seed products")
		}
		if err := seedCoupons(ctx, postgres.NewCouponRepository(db), categoryIDs); err != nil {
			return errors.Wrap(err, "seed coupons")
		}
		if err := seedUsers(ctx, postgres.NewUserRepository(db), adminToken, userToken); err != nil {
			return errors.Wrap(err, "seed users")
		}
		return nil
	})
}

func seedCategories(ctx context.Context, repo *postgres.CategoryRepository) (map[string]string, error) {
	names := []string{"Waffles", "Desserts", "Drinks"}
	ids := make(map[string]string, len(names))

	for _, name := range names {
		c := catalog.Category{ID: uuid.New().String(), Name: name}
		if err := repo.Create(ctx, &c); err != nil {
			return nil, err
		}
		ids[name] = c.ID
	}

	slog.Info("seeded categories", slog.Int("count", len(names)))
	return ids, nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, categoryIDs map[string]string) error {
	products := []catalog.Product{
		{Name: "Waffle with Berries", Description: "Belgian waffle, fresh berries", Price: decimal.RequireFromString("6.50"), CategoryID: categoryIDs["Waffles"], Stock: 40},
		{Name: "Classic Waffle", Description: "Plain with maple syrup", Price: decimal.RequireFromString("4.99"), CategoryID: categoryIDs["Waffles"], Stock: 60},
		{Name: "Tiramisu", Description: "Espresso-soaked layers", Price: decimal.RequireFromString("5.50"), CategoryID: categoryIDs["Desserts"], Stock: 25},
		{Name: "Panna Cotta", Description: "Vanilla bean, berry coulis", Price: decimal.RequireFromString("6.50"), CategoryID: categoryIDs["Desserts"], Stock: 25},
		{Name: "Flat White", Description: "Double shot", Price: decimal.RequireFromString("3.80"), CategoryID: categoryIDs["Drinks"], Stock: 200},
		{Name: "Fresh Lemonade", Description: "Squeezed to order", Price: decimal.RequireFromString("3.20"), CategoryID: categoryIDs["Drinks"], Stock: 120},
	}
	for i := range products {
		products[i].ID = uuid.New().String()
	}

	if err := repo.CreateBatch(ctx, products); err != nil {
		return err
	}
	slog.Info("seeded products", slog.Int("count", len(products)))
	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository, categoryIDs map[string]string) error {
	expiry := time.Now().AddDate(1, 0, 0)
	// A coupon covers only the categories it lists, so storewide codes must
	// enumerate every category.
	allCategories := make([]string, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		allCategories = append(allCategories, id)
	}

	coupons := []coupon.Coupon{
		{
			Code:                 "WELCOME20",
			Description:          "20% off your first order",
			DiscountType:         coupon.DiscountPercentage,
			Amount:               decimal.NewFromInt(20),
			MaxDiscount:          decimal.NewFromInt(15),
			ApplicableCategories: allCategories,
			NewUserOnly:          true,
			ExpiresAt:            expiry,
		},
		{
			Code:                 "SWEET5",
			Description:          "5 off desserts over 20",
			DiscountType:         coupon.DiscountFixed,
			Amount:               decimal.NewFromInt(5),
			MinPurchase:          decimal.NewFromInt(20),
			ApplicableCategories: []string{categoryIDs["Desserts"]},
			ExpiresAt:            expiry,
		},
		{
			Code:                 "TENOFF",
			Description:          "10 off any order over 30",
			DiscountType:         coupon.DiscountFixed,
			Amount:               decimal.NewFromInt(10),
			MinPurchase:          decimal.NewFromInt(30),
			ApplicableCategories: allCategories,
			ExpiresAt:            expiry,
		},
	}
	for i := range coupons {
		coupons[i].ID = uuid.New().String()
	}

	if err := repo.CreateBatch(ctx, coupons); err != nil {
		return err
	}
	slog.Info("seeded coupons", slog.Int("count", len(coupons)))
	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository, adminToken, userToken string) error {
	admin := user.User{ID: uuid.New().String(), Email: "admin@storefront.local", IsAdmin: true}
	if err := repo.Create(ctx, &admin, hashToken(adminToken)); err != nil {
		return err
	}
	count := 1

	if userToken != "" {
		demo := user.User{ID: uuid.New().String(), Email: "demo@storefront.local", IsNewUser: true}
		if err := repo.Create(ctx, &demo, hashToken(userToken)); err != nil {
			return err
		}
		count++
	}

	slog.Info("seeded users", slog.Int("count", count))
	return nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
