package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cookshare-app/cookshare-back/internal/config"
	"github.com/cookshare-app/cookshare-back/internal/db"
	"github.com/cookshare-app/cookshare-back/internal/service"
)

type (
	RegisterReq struct {
		Email     string `json:"email" validate:"required,email"`
		Username  string `json:"username" validate:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Password  string `json:"password" validate:"required,min=8"`
	}

	LoginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	TokenResp struct {
		Token string `json:"token"`
	}

	IngredientAmountReq struct {
		ID     uint64 `json:"id" validate:"required"`
		Amount uint32 `json:"amount"`
	}

	RecipeReq struct {
		Tags        []uint64              `json:"tags"`
		Ingredients []IngredientAmountReq `json:"ingredients"`
		Name        string                `json:"name" validate:"required"`
		Image       string                `json:"image"`
		Text        string                `json:"text"`
		CookingTime uint32                `json:"cooking_time"`
	}

	TagResp struct {
		ID    uint64 `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
		Slug  string `json:"slug"`
	}

	IngredientResp struct {
		ID              uint64 `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
	}

	IngredientLineResp struct {
		ID              uint64 `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          uint32 `json:"amount"`
	}

	AuthorResp struct {
		Email        string `json:"email"`
		ID           uint64 `json:"id"`
		Username     string `json:"username"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		IsSubscribed bool   `json:"is_subscribed"`
	}

	RecipeResp struct {
		ID               uint64               `json:"id"`
		Tags             []TagResp            `json:"tags"`
		Author           AuthorResp           `json:"author"`
		Ingredients      []IngredientLineResp `json:"ingredients"`
		IsFavorited      bool                 `json:"is_favorited"`
		IsInShoppingCart bool                 `json:"is_in_shopping_cart"`
		Name             string               `json:"name"`
		Image            string               `json:"image"`
		Text             string               `json:"text"`
		CookingTime      uint32               `json:"cooking_time"`
	}

	RecipeSummaryResp struct {
		ID          uint64 `json:"id"`
		Name        string `json:"name"`
		Image       string `json:"image"`
		CookingTime uint32 `json:"cooking_time"`
	}

	SubscriptionResp struct {
		AuthorResp
		Recipes      []RecipeSummaryResp `json:"recipes"`
		RecipesCount int64               `json:"recipes_count"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		auth        *service.Auth
		catalog     *service.Catalog
		recipes     *service.Recipes
		memberships *service.Memberships
		shopping    *service.ShoppingList
		follows     *service.Follows
		logger      *zap.SugaredLogger
	}
)

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	auth *service.Auth,
	catalog *service.Catalog,
	recipes *service.Recipes,
	memberships *service.Memberships,
	shopping *service.ShoppingList,
	follows *service.Follows,
	logger *zap.SugaredLogger,
) *HTTPServer {
	e := echo.New()

	instance := HTTPServer{
		auth:        auth,
		catalog:     catalog,
		recipes:     recipes,
		memberships: memberships,
		shopping:    shopping,
		follows:     follows,
		logger:      logger,
	}

	e.POST("/auth/register", instance.Register)
	e.POST("/auth/login", instance.Login)

	tagG := e.Group("/tags")
	tagG.GET("", instance.TagList)
	tagG.GET("/:id", instance.TagGet)

	ingredientG := e.Group("/ingredients")
	ingredientG.GET("", instance.IngredientList)
	ingredientG.GET("/:id", instance.IngredientGet)

	recipeG := e.Group("/recipes")
	recipeG.GET("", instance.RecipeList)
	recipeG.GET("/download_shopping_cart", instance.ShoppingCartDownload)
	recipeG.GET("/:id", instance.RecipeGet)
	recipeG.POST("", instance.RecipeCreate)
	recipeG.PATCH("/:id", instance.RecipeUpdate)
	recipeG.DELETE("/:id", instance.RecipeDelete)
	recipeG.POST("/:id/favorite", instance.FavoriteAdd)
	recipeG.DELETE("/:id/favorite", instance.FavoriteRemove)
	recipeG.POST("/:id/shopping_cart", instance.CartAdd)
	recipeG.DELETE("/:id/shopping_cart", instance.CartRemove)

	userG := e.Group("/users")
	userG.GET("/me", instance.Me)
	userG.GET("/subscriptions", instance.Subscriptions)
	userG.POST("/:id/subscribe", instance.Subscribe)
	userG.DELETE("/:id/subscribe", instance.Unsubscribe)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyDump(func(c echo.Context, reqBody, resBody []byte) {
		if len(reqBody) != 0 {
			logger.Debugw("request body", "body", string(censorBody(reqBody)))
		}
	}))

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

func (s *HTTPServer) Register(c echo.Context) error {
	req := RegisterReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.auth.Register(req.Email, req.Username, req.FirstName, req.LastName, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := LoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) TagList(c echo.Context) error {
	tags, err := s.catalog.TagList()
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]TagResp, len(tags))
	for i := range tags {
		resp[i] = toTagResp(&tags[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) TagGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	tag, err := s.catalog.TagGet(id)
	if err != nil {
		return mapServiceError(err)
	}

	resp := toTagResp(tag)
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) IngredientList(c echo.Context) error {
	ingredients, err := s.catalog.IngredientList(c.QueryParam("name"))
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]IngredientResp, len(ingredients))
	for i := range ingredients {
		resp[i] = IngredientResp{
			ID:              ingredients[i].ID,
			Name:            ingredients[i].Name,
			MeasurementUnit: ingredients[i].MeasurementUnit,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) IngredientGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	ingredient, err := s.catalog.IngredientGet(id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &IngredientResp{
		ID:              ingredient.ID,
		Name:            ingredient.Name,
		MeasurementUnit: ingredient.MeasurementUnit,
	})
}

func (s *HTTPServer) RecipeList(c echo.Context) error {
	viewer := ViewerFromContext(c)

	filter := service.RecipeFilter{
		TagSlugs:  c.QueryParams()["tags"],
		Favorited: c.QueryParam("is_favorited") == "1",
		InCart:    c.QueryParam("is_in_shopping_cart") == "1",
	}
	if raw := c.QueryParam("author"); raw != "" {
		authorID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid query param 'author'")
		}
		filter.AuthorID = authorID
	}

	aggregates, err := s.recipes.List(viewer, filter)
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]RecipeResp, len(aggregates))
	for i := range aggregates {
		resp[i] = toRecipeResp(&aggregates[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) RecipeGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}

	aggregate, err := s.recipes.Get(id, ViewerFromContext(c))
	if err != nil {
		return mapServiceError(err)
	}

	resp := toRecipeResp(aggregate)
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) RecipeCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := RecipeReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	aggregate, err := s.recipes.Create(user, toRecipePayload(&req))
	if err != nil {
		return mapServiceError(err)
	}

	resp := toRecipeResp(aggregate)
	return c.JSON(http.StatusCreated, &resp)
}

func (s *HTTPServer) RecipeUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := RecipeReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	aggregate, err := s.recipes.Update(id, user, toRecipePayload(&req))
	if err != nil {
		return mapServiceError(err)
	}

	resp := toRecipeResp(aggregate)
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) RecipeDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.recipes.Delete(id, user); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) FavoriteAdd(c echo.Context) error {
	return s.markAdd(c, db.MarkFavorite)
}

func (s *HTTPServer) FavoriteRemove(c echo.Context) error {
	return s.markRemove(c, db.MarkFavorite)
}

func (s *HTTPServer) CartAdd(c echo.Context) error {
	return s.markAdd(c, db.MarkCart)
}

func (s *HTTPServer) CartRemove(c echo.Context) error {
	return s.markRemove(c, db.MarkCart)
}

func (s *HTTPServer) markAdd(c echo.Context, kind db.MarkKind) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	recipeSummary, err := s.memberships.Add(user, id, kind)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, &RecipeSummaryResp{
		ID:          recipeSummary.ID,
		Name:        recipeSummary.Name,
		Image:       recipeSummary.Image,
		CookingTime: recipeSummary.CookingTime,
	})
}

func (s *HTTPServer) markRemove(c echo.Context, kind db.MarkKind) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.memberships.Remove(user, id, kind); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) ShoppingCartDownload(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	items, err := s.shopping.Items(user.ID)
	if err != nil {
		return mapServiceError(err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="shopping_list.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return service.WriteCSV(c.Response(), items)
}

func (s *HTTPServer) Subscribe(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	author, err := s.follows.Follow(user, id)
	if err != nil {
		return mapServiceError(err)
	}

	resp := toSubscriptionResp(author)
	return c.JSON(http.StatusCreated, &resp)
}

func (s *HTTPServer) Unsubscribe(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.follows.Unfollow(user, id); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) Subscriptions(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("recipes_limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid query param 'recipes_limit'")
		}
	}

	authors, err := s.follows.Following(user, limit)
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]SubscriptionResp, len(authors))
	for i := range authors {
		resp[i] = toSubscriptionResp(&authors[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) Me(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &AuthorResp{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := ""
		for key, values := range c.Request().Header {
			if strings.ToLower(key) == "x-token" {
				token = values[0]
				break
			}
		}
		if token == "" {
			if isPublicRoute(c.Request().Method, c.Path()) {
				return next(c)
			}
			return c.NoContent(http.StatusUnauthorized)
		}

		user, err := s.auth.UserByToken(token)
		if err != nil {
			s.logger.Error(errors.Wrap(err, "find user in db"))
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set("user", user)
		return next(c)
	}
}

// isPublicRoute lists the routes an anonymous caller may hit. Everything
// else wants a token.
func isPublicRoute(method, path string) bool {
	if path == "/auth/register" || path == "/auth/login" || path == "/ping" {
		return true
	}
	if method != http.MethodGet {
		return false
	}
	switch path {
	case "/tags", "/tags/:id", "/ingredients", "/ingredients/:id", "/recipes", "/recipes/:id":
		return true
	}
	return false
}

////////

func toRecipePayload(req *RecipeReq) *service.RecipePayload {
	payload := service.RecipePayload{
		Name:        req.Name,
		Image:       req.Image,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		TagIDs:      req.Tags,
		Ingredients: make([]service.IngredientAmount, len(req.Ingredients)),
	}
	for i := range req.Ingredients {
		payload.Ingredients[i] = service.IngredientAmount{
			ID:     req.Ingredients[i].ID,
			Amount: req.Ingredients[i].Amount,
		}
	}
	return &payload
}

func toTagResp(tag *db.Tag) TagResp {
	return TagResp{
		ID:    tag.ID,
		Name:  tag.Name,
		Color: tag.Color,
		Slug:  tag.Slug,
	}
}

func toRecipeResp(aggregate *service.RecipeAggregate) RecipeResp {
	resp := RecipeResp{
		ID: aggregate.ID,
		Author: AuthorResp{
			Email:        aggregate.Author.Email,
			ID:           aggregate.Author.ID,
			Username:     aggregate.Author.Username,
			FirstName:    aggregate.Author.FirstName,
			LastName:     aggregate.Author.LastName,
			IsSubscribed: aggregate.Author.Subscribed,
		},
		IsFavorited:      aggregate.Favorited,
		IsInShoppingCart: aggregate.InCart,
		Name:             aggregate.Name,
		Image:            aggregate.Image,
		Text:             aggregate.Text,
		CookingTime:      aggregate.CookingTime,
		Tags:             make([]TagResp, len(aggregate.Tags)),
		Ingredients:      make([]IngredientLineResp, len(aggregate.Ingredients)),
	}
	for i := range aggregate.Tags {
		resp.Tags[i] = toTagResp(&aggregate.Tags[i])
	}
	for i := range aggregate.Ingredients {
		resp.Ingredients[i] = IngredientLineResp{
			ID:              aggregate.Ingredients[i].ID,
			Name:            aggregate.Ingredients[i].Name,
			MeasurementUnit: aggregate.Ingredients[i].MeasurementUnit,
			Amount:          aggregate.Ingredients[i].Amount,
		}
	}
	return resp
}

func toSubscriptionResp(author *service.FollowedAuthor) SubscriptionResp {
	resp := SubscriptionResp{
		AuthorResp: AuthorResp{
			Email:        author.Email,
			ID:           author.ID,
			Username:     author.Username,
			FirstName:    author.FirstName,
			LastName:     author.LastName,
			IsSubscribed: author.Subscribed,
		},
		Recipes:      make([]RecipeSummaryResp, len(author.Recipes)),
		RecipesCount: author.RecipeCount,
	}
	for i := range author.Recipes {
		resp.Recipes[i] = RecipeSummaryResp{
			ID:          author.Recipes[i].ID,
			Name:        author.Recipes[i].Name,
			Image:       author.Recipes[i].Image,
			CookingTime: author.Recipes[i].CookingTime,
		}
	}
	return resp
}

func mapServiceError(err error) error {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"errors": validationErr.Violations,
		})
	}

	switch {
	case errors.Is(err, service.ErrRecipeNotFound),
		errors.Is(err, service.ErrTagNotFound),
		errors.Is(err, service.ErrIngredientNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAlreadyMarked),
		errors.Is(err, service.ErrMarkNotFound),
		errors.Is(err, service.ErrSelfFollow),
		errors.Is(err, service.ErrAlreadyFollowing),
		errors.Is(err, service.ErrNotFollowing),
		errors.Is(err, service.ErrLoginUserNotFound),
		errors.Is(err, service.ErrLoginPasswordDoesNotMatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

// censorBody blanks the password field of a JSON body before it reaches
// the logs.
func censorBody(body []byte) []byte {
	parsed := map[string]interface{}{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}
	if _, ok := parsed["password"]; !ok {
		return body
	}
	parsed["password"] = "$censored"
	censored, err := json.Marshal(parsed)
	if err != nil {
		return body
	}
	return censored
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, ok := c.Get("user").(*db.User)
	if !ok || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return user, nil
}

// ViewerFromContext is the anonymous-tolerant variant: nil means no
// authenticated caller.
func ViewerFromContext(c echo.Context) *db.User {
	if user, ok := c.Get("user").(*db.User); ok {
		return user
	}
	return nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param 'id'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, e
	}
	return vv, nil
}
