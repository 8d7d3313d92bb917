// common.go
//
// Split sheet agreements with collaborative e-signatures for Saldaña Music
// Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)
//
// This file is part of splitsheets.
// splitsheets is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// splitsheets is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with splitsheets.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/saldanamusic/splitsheets/internal/middleware"
	"github.com/saldanamusic/splitsheets/internal/services"
	"github.com/saldanamusic/splitsheets/internal/types"
	"github.com/saldanamusic/splitsheets/internal/utils"
)

// actor builds the acting user from the authenticated request.
func actor(c *fiber.Ctx) (services.Actor, error) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return services.Actor{}, types.Unauthorized("Authentication required")
	}
	return services.ActorFor(user, utils.ClientIP(c), c.Get(fiber.HeaderUserAgent)), nil
}

// parseBody decodes the JSON request body into v.
func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return types.BadRequest("Invalid request body: %v", err)
	}
	return nil
}

// queryInt reads an integer query parameter, falling back to def when it is
// absent or malformed.
func queryInt(c *fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
