package engine

import "github.com/aethra/glow/internal/models"

// DefaultModules returns the built-in garage schema used when no modules
// file is configured.
func DefaultModules() []models.Module {
	notSearchable := false
	idField := models.FieldDescriptor{
		ID: "id", Label: "ID", Type: models.FieldID, Width: "8%",
		Searchable: &notSearchable, HideInFilter: true,
	}

	return []models.Module{
		{
			ID:    "enquiries",
			Label: "Leads",
			Fields: []models.FieldDescriptor{
				idField,
				{ID: "name", Label: "Customer name", Type: models.FieldText, Placeholder: "Filter by name", Width: "20%", Sortable: true},
				{ID: "phone", Label: "Phone", Type: models.FieldText, Format: models.FormatPhone, Placeholder: "Filter by phone", Width: "18%"},
				{ID: "service_type", Label: "Services", Type: models.FieldReference, ReferencedModuleID: "services", Width: "18%", Multi: true},
				{
					ID: "status", Label: "Status", Type: models.FieldSelect, Width: "14%", ChipByValue: true,
					Options: statusOptions(
						[]string{"New", "Booked", "In progress", "Done", "Cancelled"},
						map[string]string{"New": "new", "Booked": "booked", "In progress": "in-progress", "Done": "done", "Cancelled": "cancelled"},
					),
				},
			},
		},
		{
			ID:    "contacts",
			Label: "Customers",
			Fields: []models.FieldDescriptor{
				idField,
				{ID: "name", Label: "Name", Type: models.FieldText, Placeholder: "Filter by name", Width: "20%", Sortable: true},
				{ID: "phone", Label: "Phone", Type: models.FieldText, Format: models.FormatPhone, Placeholder: "Filter by phone", Width: "18%"},
				{ID: "email", Label: "Email", Type: models.FieldText, Format: models.FormatEmail, Placeholder: "Filter by email", Width: "28%"},
			},
		},
		{
			ID:    "services",
			Label: "Services",
			Fields: []models.FieldDescriptor{
				idField,
				{ID: "name", Label: "Service name", Type: models.FieldText, Placeholder: "Filter by name", Width: "38%", Sortable: true},
				{ID: "price", Label: "Price (₹)", Type: models.FieldNumber, Format: models.FormatCurrency, CurrencyCode: "₹", Placeholder: "e.g. 500", Width: "27%"},
				{ID: "duration_mins", Label: "Duration (mins)", Type: models.FieldNumber, Format: models.FormatNumber, Placeholder: "e.g. 60", Width: "27%"},
			},
			Seed: []models.Row{
				{"id": 1, "name": "Oil Change", "price": 1500, "duration_mins": 30},
				{"id": 2, "name": "Brake Pad Replacement", "price": 3500, "duration_mins": 60},
				{"id": 3, "name": "Full Service", "price": 5000, "duration_mins": 120},
				{"id": 4, "name": "Brake Discs", "price": 4500, "duration_mins": 90},
				{"id": 5, "name": "Tyre Change", "price": 2000, "duration_mins": 45},
				{"id": 6, "name": "Wheel Alignment", "price": 1200, "duration_mins": 30},
				{"id": 7, "name": "AC Repair", "price": 2500, "duration_mins": 60},
				{"id": 8, "name": "Battery Check", "price": 500, "duration_mins": 15},
				{"id": 9, "name": "Engine Diagnostic", "price": 800, "duration_mins": 30},
				{"id": 10, "name": "Coolant Flush", "price": 1800, "duration_mins": 45},
			},
		},
		{
			ID:    "staffs",
			Label: "Staffs",
			Rows:  3,
			Fields: []models.FieldDescriptor{
				idField,
				{ID: "name", Label: "Name", Type: models.FieldText, Placeholder: "Filter by name", Width: "22%", Sortable: true},
				{ID: "role", Label: "Role", Type: models.FieldText, Placeholder: "Filter by role", Width: "22%"},
				{ID: "email", Label: "Email", Type: models.FieldText, Format: models.FormatEmail, Placeholder: "Filter by email", Width: "24%"},
				{ID: "phone", Label: "Phone", Type: models.FieldText, Format: models.FormatPhone, Placeholder: "Filter by phone", Width: "24%"},
			},
		},
		{
			ID:    "work_orders",
			Label: "Work orders",
			Fields: []models.FieldDescriptor{
				idField,
				{ID: "customer", Label: "Customer", Type: models.FieldReference, ReferencedModuleID: "contacts", Width: "18%", Sortable: true},
				{ID: "vehicle", Label: "Vehicle", Type: models.FieldReference, ReferencedModuleID: "vehicles", Width: "18%"},
				{ID: "service", Label: "Services", Type: models.FieldReference, ReferencedModuleID: "services", Width: "18%", Multi: true},
				{
					ID: "status", Label: "Status", Type: models.FieldSelect, Width: "14%", ChipByValue: true,
					Options: statusOptions(
						[]string{"Scheduled", "In progress", "Done", "Cancelled"},
						map[string]string{"Scheduled": "booked", "In progress": "in-progress", "Done": "done", "Cancelled": "cancelled"},
					),
				},
				{ID: "amount", Label: "Amount (₹)", Type: models.FieldNumber, Format: models.FormatCurrency, CurrencyCode: "₹", Placeholder: "Filter by amount", Width: "14%"},
			},
		},
		{
			ID:    "vehicles",
			Label: "Vehicles",
			Fields: []models.FieldDescriptor{
				idField,
				{ID: "registration", Label: "Vehicle number", Type: models.FieldText, Placeholder: "Filter by vehicle number", Width: "46%", Sortable: true},
				{ID: "owner", Label: "Owner", Type: models.FieldReference, ReferencedModuleID: "contacts", Width: "46%"},
			},
		},
	}
}

func statusOptions(values []string, palette map[string]string) []models.Option {
	out := make([]models.Option, len(values))
	for i, v := range values {
		out[i] = models.Option{Value: v, Label: v, ChipClass: palette[v]}
	}
	return out
}

// DefaultUser is the signed-in user when no other source provides one.
func DefaultUser() models.User {
	return models.User{ID: 1, Name: "Priya", Role: "Garage Manager", Email: "priya@garage.example.com", Initials: "P"}
}
