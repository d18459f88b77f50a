package services

import (
	"fmt"
	"strings"
)

// Location flow: collecting a delivery address via shared coordinates, a
// place search, or plain typed text. Geocoding itself lives behind the
// optional Geocoder; without one the coordinate paths degrade to manual
// entry.

// Geocoder resolves free-text place searches and coordinate pairs into
// street addresses. Optional; nil disables the lookup paths.
type Geocoder interface {
	SearchPlace(query string) (address string, err error)
	ReverseGeocode(lat, lon string) (address string, err error)
}

// SetGeocoder wires an optional geocoding backend.
func (mp *MessageProcessor) SetGeocoder(g Geocoder) {
	mp.geocoder = g
}

func locationMenu() HandlerResult {
	return ReplyButtons(
		"Where should we deliver? 📍\n\nShare your live location from the WhatsApp attachment menu, or pick an option:",
		Button{ID: "loc_search", Title: "Search a place"},
		Button{ID: "loc_type", Title: "Type my address"},
	)
}

func (mp *MessageProcessor) handleAddressCollectionMenu(session *Session, message, raw string) HandlerResult {
	// A shared live location arrives as "lat,lon" in the raw payload.
	if lat, lon, ok := parseCoordinates(raw); ok {
		return mp.resolveCoordinates(session, lat, lon)
	}

	switch strings.ToLower(strings.TrimSpace(message)) {
	case "loc_search", "search a place", "search", "1":
		session.State = StateMapsSearchInput
		return ReplyText("Type the name of the place or area (e.g. *Ikeja City Mall*):")
	case "loc_type", "type my address", "type", "2":
		session.State = StateManualAddressEntry
		return ReplyText("Please type your full delivery address:")
	}
	session.State = StateAddressCollectionMenu
	return locationMenu()
}

func (mp *MessageProcessor) handleAwaitingLiveLocation(session *Session, message, raw string) HandlerResult {
	if lat, lon, ok := parseCoordinates(raw); ok {
		return mp.resolveCoordinates(session, lat, lon)
	}
	return ReplyText("I couldn't read that location. Please share your live location from the attachment menu, or type *2* to enter your address manually.")
}

func (mp *MessageProcessor) handleMapsSearchInput(session *Session, message, raw string) HandlerResult {
	query := strings.TrimSpace(raw)
	if query == "" {
		return ReplyText("Type the name of the place or area you'd like us to deliver to:")
	}
	if mp.geocoder == nil {
		session.State = StateManualAddressEntry
		return ReplyText("Place search isn't available right now. Please type your full delivery address instead:")
	}

	address, err := mp.geocoder.SearchPlace(query)
	if err != nil {
		return ReplyText("We couldn't find that place. 😕 Try a different search, or type *menu* to start over.")
	}
	session.Data["candidate_address"] = address
	session.State = StateConfirmMapsResult
	return ReplyButtons(
		fmt.Sprintf("Is this the right place?\n\n📍 %s", address),
		Button{ID: "loc_yes", Title: "Yes, that's it"},
		Button{ID: "loc_no", Title: "No, search again"},
	)
}

func (mp *MessageProcessor) handleManualAddressEntry(session *Session, message, raw string) HandlerResult {
	address := strings.TrimSpace(raw)
	if address == "" {
		return ReplyText("Please type your full delivery address:")
	}
	return mp.acceptAddress(session, address)
}

func (mp *MessageProcessor) handleConfirmDetectedLocation(session *Session, message, raw string) HandlerResult {
	return mp.confirmCandidate(session, message)
}

func (mp *MessageProcessor) handleConfirmMapsResult(session *Session, message, raw string) HandlerResult {
	return mp.confirmCandidate(session, message)
}

func (mp *MessageProcessor) handleConfirmCoordinates(session *Session, message, raw string) HandlerResult {
	return mp.confirmCandidate(session, message)
}

func (mp *MessageProcessor) confirmCandidate(session *Session, message string) HandlerResult {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "loc_yes", "yes, that's it", "yes", "confirm":
		address := session.Data["candidate_address"]
		delete(session.Data, "candidate_address")
		if address == "" {
			session.State = StateAddressCollectionMenu
			return locationMenu()
		}
		return mp.acceptAddress(session, address)
	case "loc_no", "no, search again", "no":
		delete(session.Data, "candidate_address")
		session.State = StateAddressCollectionMenu
		return locationMenu()
	}
	return ReplyButtons(
		"Is this delivery address correct?\n\n📍 "+session.Data["candidate_address"],
		Button{ID: "loc_yes", Title: "Yes, that's it"},
		Button{ID: "loc_no", Title: "No, search again"},
	)
}

// acceptAddress stores the address and resumes checkout when a cart is
// waiting, otherwise returns to the main menu.
func (mp *MessageProcessor) acceptAddress(session *Session, address string) HandlerResult {
	session.Address = address
	mp.persistProfile(session)

	if len(session.Cart) > 0 {
		return RedirectTo(HandlerOrder, "confirm")
	}
	return RedirectTo(HandlerGreeting, "")
}

func (mp *MessageProcessor) resolveCoordinates(session *Session, lat, lon string) HandlerResult {
	if mp.geocoder == nil {
		session.State = StateManualAddressEntry
		return ReplyText("Thanks! We couldn't turn that into a street address automatically. Please type your full delivery address:")
	}
	address, err := mp.geocoder.ReverseGeocode(lat, lon)
	if err != nil {
		session.State = StateManualAddressEntry
		return ReplyText("We couldn't pin down that location. 😕 Please type your full delivery address:")
	}
	// Coordinates ride along so confirmations can link a map pin.
	session.Data["coordinates"] = lat + "," + lon
	session.Data["candidate_address"] = address
	session.State = StateConfirmDetectedLoc
	return ReplyButtons(
		fmt.Sprintf("We detected this address:\n\n📍 %s\n\nIs that right?", address),
		Button{ID: "loc_yes", Title: "Yes, that's it"},
		Button{ID: "loc_no", Title: "No, search again"},
	)
}

// parseCoordinates accepts "6.5244,3.3792" style payloads.
func parseCoordinates(raw string) (lat, lon string, ok bool) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return "", "", false
	}
	lat = strings.TrimSpace(parts[0])
	lon = strings.TrimSpace(parts[1])
	if lat == "" || lon == "" {
		return "", "", false
	}
	for _, p := range []string{lat, lon} {
		for _, r := range p {
			if (r < '0' || r > '9') && r != '.' && r != '-' {
				return "", "", false
			}
		}
	}
	return lat, lon, true
}
