package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cookshare-app/cookshare-back/internal/config"
	"github.com/cookshare-app/cookshare-back/internal/db"
	"github.com/cookshare-app/cookshare-back/internal/service"
	"github.com/cookshare-app/cookshare-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			NewLogger,
			config.NewConfig,
			db.NewGormClient,
			service.NewAuth,
			service.NewCatalog,
			service.NewRecipes,
			service.NewMemberships,
			service.NewShoppingList,
			service.NewFollows,
			transport.NewHTTPServer,
		),
		fx.Invoke(func(server *transport.HTTPServer) {}),
	)

	app.Run()
}

func NewLogger() (*zap.SugaredLogger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
