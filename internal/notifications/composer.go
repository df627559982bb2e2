package notifications

import (
	"bytes"
	"fmt"
	"html/template"

	"clinic/pkg/config"
)

const patientAppointmentTmpl = `<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <h1 style="color: #0694A2;">Appointment Confirmed!</h1>
  <p>Hi {{.Name}},</p>
  <p>Your consultation with <strong>{{.Clinic.DoctorName}}</strong> is confirmed for:</p>
  <p style="font-size: 1.2em; font-weight: bold; color: #333;">{{.Date}} at {{.Time}} IST</p>
  <p style="font-weight: bold;">Please add this event to your personal calendar to get a reminder.</p>
  <hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">
  <h2 style="color: #0694A2;">Next Steps:</h2>
  <ol>
    <li>
      <strong>Payment:</strong> Please send the consultation fee of <strong>{{.Clinic.ConsultationFee}}</strong> to the following UPI ID:
      <br>
      <strong style="font-size: 1.1em; color: #000;">{{.Clinic.UPIID}}</strong>
    </li>
    <li>
      <strong>Join the Call:</strong> At your scheduled time, please join the Google Meet using the link below:
      <br>
      <a href="{{.Clinic.MeetLink}}" style="color: #0694A2; text-decoration: none;">{{.Clinic.MeetLink}}</a>
    </li>
  </ol>
  <p>We look forward to speaking with you!</p>
  <br>
  <p style="font-size: 0.9em; color: #777;">Best,<br>{{.Clinic.ClinicName}}</p>
</div>`

const clinicAppointmentTmpl = `<p>You have a new appointment:</p>
<ul>
  <li><strong>Patient:</strong> {{.Name}}</li>
  <li><strong>Email:</strong> {{.Email}}</li>
  <li><strong>Date:</strong> {{.Date}}</li>
  <li><strong>Time:</strong> {{.Time}} IST</li>
  <li><strong>Service:</strong> Consultation</li>
</ul>`

const patientDiscoveryTmpl = `<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <h1 style="color: #0694A2;">Discovery Call Confirmed!</h1>
  <p>Hi {{.Name}},</p>
  <p>Your <strong>{{.Clinic.ConsultationFee}}</strong> Discovery Call with <strong>{{.Clinic.DoctorName}}</strong> is confirmed for your preferred date of:</p>
  <p style="font-size: 1.2em; font-weight: bold; color: #333;">{{.Date}}</p>
  {{- if .UPIID}}
  <p>We have received your UPI Transaction ID (<strong>{{.UPIID}}</strong>) for verification and will contact you shortly at <strong>{{.Email}}</strong> to finalize the exact time.</p>
  {{- else}}
  <p>We will contact you shortly at <strong>{{.Email}}</strong> to finalize the exact time.</p>
  {{- end}}
  <hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">
  <h2 style="color: #0694A2;">Meeting Link:</h2>
  <p>Once the time is set, please use the Google Meet link below for our call:</p>
  <a href="{{.Clinic.MeetLink}}" style="color: #0694A2; text-decoration: none;">{{.Clinic.MeetLink}}</a>
  <br>
  <p>We look forward to speaking with you!</p>
  <br>
  <p style="font-size: 0.9em; color: #777;">Best,<br>{{.Clinic.ClinicName}}</p>
</div>`

const clinicDiscoveryTmpl = `<p>You have a new discovery call booking:</p>
<ul>
  <li><strong>Patient:</strong> {{.Name}}</li>
  <li><strong>Email:</strong> {{.Email}}</li>
  <li><strong>Preferred Date:</strong> {{.Date}}</li>
  <li><strong>UPI ID:</strong> {{.UPIID}}</li>
  <li><strong>Service:</strong> Discovery Call</li>
</ul>`

const clinicSenderName = "Clinic System"

type templateSet struct {
	patientSubject string
	clinicSubject  string
	patient        *template.Template
	clinic         *template.Template
}

// Composer renders the patient confirmation and the clinic summary for a
// Request.
type Composer struct {
	clinic    config.ClinicProfile
	templates map[Kind]templateSet
}

type templateData struct {
	Request
	Clinic config.ClinicProfile
}

func NewComposer(clinic config.ClinicProfile) *Composer {
	return &Composer{
		clinic: clinic,
		templates: map[Kind]templateSet{
			KindAppointment: {
				patientSubject: "Your Appointment is Confirmed!",
				clinicSubject:  "New Appointment: %s on %s",
				patient:        template.Must(template.New("patient_appointment").Parse(patientAppointmentTmpl)),
				clinic:         template.Must(template.New("clinic_appointment").Parse(clinicAppointmentTmpl)),
			},
			KindDiscovery: {
				patientSubject: "Your Discovery Call is Confirmed!",
				clinicSubject:  "New Discovery Call: %s on %s",
				patient:        template.Must(template.New("patient_discovery").Parse(patientDiscoveryTmpl)),
				clinic:         template.Must(template.New("clinic_discovery").Parse(clinicDiscoveryTmpl)),
			},
		},
	}
}

// Compose returns the patient message (CC clinic) and the clinic-only
// message, in send order.
func (c *Composer) Compose(req Request) (patient Email, clinic Email, err error) {
	set, ok := c.templates[req.Type]
	if !ok {
		return Email{}, Email{}, fmt.Errorf("%w: %q", ErrUnknownKind, req.Type)
	}

	data := templateData{Request: req, Clinic: c.clinic}

	patientHTML, err := render(set.patient, data)
	if err != nil {
		return Email{}, Email{}, err
	}
	clinicHTML, err := render(set.clinic, data)
	if err != nil {
		return Email{}, Email{}, err
	}

	patient = Email{
		From:    Address{Name: c.clinic.ClinicName, Email: c.clinic.PatientSender},
		To:      []Address{{Name: req.Name, Email: req.Email}},
		CC:      []Address{{Email: c.clinic.ClinicEmail}},
		Subject: set.patientSubject,
		HTML:    patientHTML,
	}
	clinic = Email{
		From:    Address{Name: clinicSenderName, Email: c.clinic.ClinicSender},
		To:      []Address{{Email: c.clinic.ClinicEmail}},
		Subject: fmt.Sprintf(set.clinicSubject, req.Name, req.Date),
		HTML:    clinicHTML,
	}
	return patient, clinic, nil
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
