package main

import (
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// pairingQR renders a fake pairing code the way the real providers hand it
// out: a PNG data URL.
func pairingQR(session string) string {
	png, err := qrcode.Encode("2@"+session+","+uuid.NewString(), qrcode.Medium, 256)
	if err != nil {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// newMockApp serves minimal Evolution, Wuzapi and Graph API look-alikes under
// /evolution, /wuzapi and /graph. Only the credential headers are checked.
func newMockApp(log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{AppName: "mock-upstream", DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		log.Info("mock upstream call", "method", c.Method(), "path", c.Path())
		return c.Next()
	})

	registerEvolution(app.Group("/evolution", requireHeader("apikey")))
	registerWuzapi(app.Group("/wuzapi"))
	registerCloud(app.Group("/graph", requireHeader(fiber.HeaderAuthorization)))

	return app
}

func requireHeader(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(name) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing " + name})
		}
		return c.Next()
	}
}

type evolutionCreate struct {
	InstanceName string `json:"instanceName"`
	Token        string `json:"token"`
}

type evolutionSend struct {
	Number string `json:"number"`
}

func registerEvolution(r fiber.Router) {
	r.Post("/instance/create", func(c *fiber.Ctx) error {
		var req evolutionCreate
		if err := c.BodyParser(&req); err != nil || req.InstanceName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": 400, "error": "Bad Request", "response": fiber.Map{"message": []string{"instanceName is required"}}})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"instance": fiber.Map{"instanceName": req.InstanceName, "instanceId": uuid.NewString(), "status": "created"},
			"hash":     req.Token,
			"qrcode":   fiber.Map{"base64": pairingQR(req.InstanceName)},
		})
	})
	r.Get("/instance/connect/:name", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"pairingCode": nil, "code": "2@" + c.Params("name"), "base64": pairingQR(c.Params("name")), "count": 1})
	})
	r.Delete("/instance/logout/:name", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "SUCCESS", "error": false, "response": fiber.Map{"message": "Instance logged out"}})
	})
	r.Delete("/instance/delete/:name", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "SUCCESS", "error": false, "response": fiber.Map{"message": "Instance deleted"}})
	})
	r.Get("/webhook/set/:name", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"webhook": fiber.Map{"instanceName": c.Params("name"), "enabled": true}})
	})
	r.Post("/message/:kind/:name", func(c *fiber.Ctx) error {
		var req evolutionSend
		if err := c.BodyParser(&req); err != nil || req.Number == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": 400, "error": "Bad Request"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"key":              fiber.Map{"remoteJid": req.Number + "@s.whatsapp.net", "fromMe": true, "id": uuid.NewString()},
			"status":           "PENDING",
			"messageType":      c.Params("kind"),
			"messageTimestamp": time.Now().Unix(),
		})
	})
}

func wuzapiOK(c *fiber.Ctx, data fiber.Map) error {
	return c.JSON(fiber.Map{"code": 200, "data": data, "success": true})
}

func registerWuzapi(r fiber.Router) {
	admin := r.Group("/admin", requireHeader(fiber.HeaderAuthorization))
	admin.Post("/users", func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"id": uuid.NewString()})
	})
	admin.Delete("/users/:token", func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"Details": "user deleted"})
	})

	token := requireHeader("token")
	r.Post("/session/connect", token, func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"details": "Connected!", "events": "Message", "jid": ""})
	})
	r.Post("/session/disconnect", token, func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"Details": "Disconnected"})
	})
	r.Get("/session/qr", token, func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"QRCode": pairingQR(c.Get("token"))})
	})
	r.Post("/webhook", token, func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"webhook": "set"})
	})
	r.Post("/proxy", token, func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"Details": "Proxy configured"})
	})
	r.Post("/chat/send/:kind", token, func(c *fiber.Ctx) error {
		return wuzapiOK(c, fiber.Map{"Details": "Sent", "Id": uuid.NewString(), "Timestamp": time.Now().Unix()})
	})
}

type cloudSend struct {
	To string `json:"to"`
}

type cloudTemplate struct {
	Category string `json:"category"`
}

func registerCloud(r fiber.Router) {
	r.Post("/:version/:waba/subscribed_apps", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	r.Get("/:version/:waba/phone_numbers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": []fiber.Map{{
			"id":                   c.Params("waba") + "-phone",
			"display_phone_number": "+55 11 90000-0000",
			"verified_name":        "Mock Business",
		}}})
	})
	r.Post("/:version/:phone/register", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	r.Post("/:version/:phone/messages", func(c *fiber.Ctx) error {
		var req cloudSend
		if err := c.BodyParser(&req); err != nil || req.To == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fiber.Map{"message": "(#100) Invalid parameter", "code": 100}})
		}
		return c.JSON(fiber.Map{
			"messaging_product": "whatsapp",
			"contacts":          []fiber.Map{{"input": req.To, "wa_id": req.To}},
			"messages":          []fiber.Map{{"id": "wamid." + uuid.NewString()}},
		})
	})
	r.Post("/:version/:waba/message_templates", func(c *fiber.Ctx) error {
		var req cloudTemplate
		_ = c.BodyParser(&req)
		return c.JSON(fiber.Map{"id": uuid.NewString(), "status": "PENDING", "category": req.Category})
	})
}
