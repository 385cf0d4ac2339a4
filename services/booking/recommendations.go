package booking

import (
	"fmt"

	"visaflow/models"
	"visaflow/services/adapters"
	"visaflow/services/registry"
	"visaflow/utils"
)

// warnings are advisory notes attached to every result.
func warnings(result *models.BookingResult, opts models.HybridBookingOptions, reg *registry.Registry) []string {
	var out []string
	if result.Success && result.Method == models.MethodScraping {
		out = append(out, "Booked through the scraping fallback; "+utils.StaleSlotWarning+". Verify the appointment on the official portal.")
	}
	if result.Success && opts.Urgency != models.UrgencyNormal && result.TotalCost > 0 {
		out = append(out, fmt.Sprintf("%s urgency applied a %.1fx surcharge to the provider fee.", opts.Urgency, registry.UrgencyMultiplier(opts.Urgency)))
	}
	if result.Success && result.Method != models.MethodOfficial && len(reg.Candidates(models.KindOfficial, result.Country, result.VisaType)) > 0 {
		out = append(out, "An official channel exists for this visa type but could not complete the booking.")
	}
	for _, a := range result.Attempts {
		if a.ErrorKind == string(adapters.KindTransient) {
			out = append(out, "Some providers timed out or returned transient errors during this booking.")
			break
		}
	}
	return out
}

// recommendations explain a failed booking from the pattern of attempts.
func recommendations(result *models.BookingResult, chain []models.AdapterDescriptor, opts models.HybridBookingOptions, reg *registry.Registry) []string {
	if result.State == models.StateCanceled {
		return []string{"The request was canceled before a booking completed; resubmit when ready."}
	}
	if len(chain) == 0 {
		if servesCountry(reg, result.Country) {
			return []string{fmt.Sprintf("No booking method is available for %s %s; the providers serving %s do not offer this visa type.", result.Country, result.VisaType, result.Country)}
		}
		return []string{fmt.Sprintf("No booking method is available for %s %s; check adapter coverage or enable additional providers.", result.Country, result.VisaType)}
	}

	byKind := map[models.AdapterKind][]models.BookingAttempt{}
	for _, a := range result.Attempts {
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}

	var out []string
	if result.State == models.StateAborted && len(result.Attempts) > 0 {
		last := result.Attempts[len(result.Attempts)-1]
		out = append(out, fmt.Sprintf("%s rejected the request data; correct the applicant details and resubmit.", last.AdapterID))
		return out
	}
	if allFailed(byKind[models.KindOfficial]) {
		out = append(out, "Official APIs are unavailable; retry later.")
	}
	if attempts := byKind[models.KindPartner]; allFailed(attempts) {
		if anyKind(attempts, adapters.KindUnavailable) {
			out = append(out, "Partner bookings failed; check partner balance and credentials.")
		} else {
			out = append(out, "Partner providers could not complete the booking; retry later.")
		}
	}
	if allFailed(byKind[models.KindScraping]) {
		out = append(out, "The public portal blocked or rejected automated access.")
	}
	if onlyKind(result.Attempts, adapters.KindNoSlots) {
		out = append(out, "No appointments are currently open; start monitoring to be alerted when slots appear.")
	}
	if !opts.FallbackEnabled {
		out = append(out, "Fallback is disabled; enable it to try other booking methods.")
	}
	return out
}

func servesCountry(reg *registry.Registry, country string) bool {
	for _, d := range reg.GetPartnersStatus() {
		if d.Enabled && d.CoversCountry(country) {
			return true
		}
	}
	return false
}

func allFailed(attempts []models.BookingAttempt) bool {
	if len(attempts) == 0 {
		return false
	}
	for _, a := range attempts {
		if a.Success {
			return false
		}
	}
	return true
}

func anyKind(attempts []models.BookingAttempt, kind adapters.ErrorKind) bool {
	for _, a := range attempts {
		if a.ErrorKind == string(kind) {
			return true
		}
	}
	return false
}

func onlyKind(attempts []models.BookingAttempt, kind adapters.ErrorKind) bool {
	if len(attempts) == 0 {
		return false
	}
	for _, a := range attempts {
		if a.ErrorKind != string(kind) {
			return false
		}
	}
	return true
}
