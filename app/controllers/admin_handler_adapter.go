package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/beatmarkt/BeatMarkt/app/repository"
)

// Global admin controller instance
var adminController *AdminController

// InitializeAdminController initializes the global admin controller with repositories
func InitializeAdminController() {
	repos := repository.GetGlobalRepositories()
	adminController = NewAdminController(repos)
}

// GetAdminController returns the global admin controller instance
func GetAdminController() *AdminController {
	if adminController == nil {
		InitializeAdminController()
	}
	return adminController
}

// Adapter functions to maintain compatibility with existing router

// HandleAdminDashboard - Adapter for admin dashboard
func HandleAdminDashboard(c *fiber.Ctx) error {
	return GetAdminController().HandleDashboard(c)
}

// HandleAdminUsers - Adapter for user management
func HandleAdminUsers(c *fiber.Ctx) error {
	return GetAdminController().HandleUsers(c)
}

// HandleAdminUserCreate - Adapter for account provisioning
func HandleAdminUserCreate(c *fiber.Ctx) error {
	return GetAdminController().HandleUserCreate(c)
}

// HandleAdminUserUpdate - Adapter for user update
func HandleAdminUserUpdate(c *fiber.Ctx) error {
	return GetAdminController().HandleUserUpdate(c)
}

// HandleAdminUserDelete - Adapter for user delete
func HandleAdminUserDelete(c *fiber.Ctx) error {
	return GetAdminController().HandleUserDelete(c)
}

// HandleAdminBeatTakedown - Adapter for listing takedown
func HandleAdminBeatTakedown(c *fiber.Ctx) error {
	return GetAdminController().HandleBeatTakedown(c)
}

// HandleAdminPurchaseRefund - Adapter for recording refunds
func HandleAdminPurchaseRefund(c *fiber.Ctx) error {
	return GetAdminController().HandlePurchaseRefund(c)
}

// HandleAdminJobQueueStatus - Adapter for job queue health
func HandleAdminJobQueueStatus(c *fiber.Ctx) error {
	return GetAdminController().HandleJobQueueStatus(c)
}
