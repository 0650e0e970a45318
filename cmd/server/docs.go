// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package main provides the Lanewise HTTP server.
//
// @title Lanewise API
// @version 1.0
// @description Personalized discovery lanes for media catalogs.
// @description
// @description ## Lanes
// @description
// @description Lanewise turns a profile's watch history into a set of themed
// @description recommendation lanes (e.g. "Movies For You", "Hidden Gems",
// @description "Because You Watch Documentaries"). Lanes are generated by a
// @description background refresh cycle and served from cache; a refresh can
// @description be triggered per profile via POST /api/v1/profiles/{id}/refresh.
// @description
// @description ## Authentication
// @description
// @description With AUTH_MODE=jwt, profile endpoints require a Bearer token.
// @description Use /api/v1/auth/login to obtain one.
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per minute per IP address.
// @description Login attempts are limited to 5 per 5 minutes per IP.
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "error": {
// @description     "code": "ERROR_CODE",
// @description     "message": "Human-readable error message"
// @description   },
// @description   "metadata": {
// @description     "timestamp": "2026-08-21T12:34:56Z"
// @description   }
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/dankeller/lanewise/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:7470
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token with "Bearer " prefix. Obtain via /api/v1/auth/login.
//
// @tag.name health
// @tag.description Liveness and readiness probes
//
// @tag.name auth
// @tag.description Authentication and session management
//
// @tag.name profiles
// @tag.description Profile refresh and status
//
// @tag.name lanes
// @tag.description Generated discovery lane retrieval
package main
