package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Services bundles everything the router exposes.
type Services struct {
	Offers       OfferService
	Reservations ReservationService
	Deals        DealLister
	Completer    DealCompleter
	Users        UserService
	Rates        RateSource
	Now          func() time.Time
}

// NewRouter assembles the public API.
func NewRouter(svcs Services, corsOrigins []string, log *logrus.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.NotFound(NotFoundHandler().ServeHTTP)

	r.Get("/health", HealthHandler)
	r.Get("/rates/usdt", HandleCurrentRate(svcs.Rates))

	r.Route("/offers", func(r chi.Router) {
		r.Get("/", HandleListOffers(svcs.Offers))
		r.Post("/", HandleCreateOffer(svcs.Offers))
		r.Get("/{offerID}", HandleGetOffer(svcs.Offers))
		r.Get("/{offerID}/slots", HandleOfferSlots(svcs.Offers, svcs.Now))
		r.Put("/{offerID}/window", HandleUpdateOfferWindow(svcs.Offers))
		r.Delete("/{offerID}", HandleDeleteOffer(svcs.Offers))
		r.Post("/{offerID}/complete", HandleCompleteOffer(svcs.Completer))
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", HandleCreateReservation(svcs.Reservations))
		r.Get("/pending", HandlePendingReservations(svcs.Reservations))
		r.Get("/{reservationID}", HandleGetReservation(svcs.Reservations))
		r.Post("/cancel", HandleCancelReservation(svcs.Reservations))
		r.Post("/{reservationID}/respond", HandleRespondReservation(svcs.Reservations))
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", HandleRegister(svcs.Users))
		r.Post("/{userID}/telegram", HandleAttachTelegram(svcs.Users))
		r.Get("/{userID}/deals", HandleUserDeals(svcs.Deals))
	})

	return CORS(corsOrigins, RequestLogger(r, log))
}
