package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"gymaccess/internal/models"
)

const subjectFormat = "GYM ACCESS REQUEST - %s"

// BookingRequest is the content of a booking notification.
type BookingRequest struct {
	MemberID    string
	MemberName  string
	MemberEmail string
	ClientName  string
	State       string
	Provider    string
	ReferenceID string
	BookedAt    string
}

var bookingTemplate = template.Must(template.New("booking_request").Parse(`<html>
<body>
<p>Dear Contact Centre,</p>
<p>This is to notify you that one of our esteemed enrollees has successfully booked a gym session. Below are the details:</p>
<div>
<p><strong>Member ID:</strong> {{.MemberID}}</p>
<p><strong>Name:</strong> {{.MemberName}}</p>
<p><strong>Client:</strong> {{.ClientName}}</p>
<p><strong>State:</strong> {{.State}}</p>
<p><strong>Gym Provider:</strong> {{.Provider}}</p>
<p><strong>Reference ID:</strong> {{.ReferenceID}}</p>
<p><strong>Booking Date/Time:</strong> {{.BookedAt}}</p>
</div>
<p>Best regards,<br>Gym Access Portal</p>
</body>
</html>
`))

// Compose renders the booking notification addressed to the operations
// contact with the member in copy.
func Compose(operationsEmail, subjectPrefix string, req BookingRequest) (*models.Notification, error) {
	var body bytes.Buffer
	if err := bookingTemplate.Execute(&body, req); err != nil {
		return nil, fmt.Errorf("render booking request: %w", err)
	}

	return &models.Notification{
		To:       operationsEmail,
		Cc:       strings.TrimSpace(req.MemberEmail),
		Subject:  subjectPrefix + fmt.Sprintf(subjectFormat, req.MemberID),
		HTMLBody: body.String(),
		Text:     plainText(req),
	}, nil
}

func plainText(req BookingRequest) string {
	var sb strings.Builder
	sb.WriteString("Gym access booked\n\n")
	fmt.Fprintf(&sb, "Member ID: %s\n", req.MemberID)
	fmt.Fprintf(&sb, "Name: %s\n", req.MemberName)
	fmt.Fprintf(&sb, "Client: %s\n", req.ClientName)
	fmt.Fprintf(&sb, "State: %s\n", req.State)
	fmt.Fprintf(&sb, "Gym Provider: %s\n", req.Provider)
	fmt.Fprintf(&sb, "Reference ID: %s\n", req.ReferenceID)
	fmt.Fprintf(&sb, "Booking Date/Time: %s\n", req.BookedAt)
	return sb.String()
}
