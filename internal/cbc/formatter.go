package cbc

// Formatter builds provider payloads for one payload family.
type Formatter interface {
	FormatAlert(req BroadcastRequest) Payload
	FormatUpdate(req BroadcastRequest) Payload
	FormatCancel(req BroadcastRequest) Payload
	FormatTest(identifier, messageNumber string) Payload
}

// capFormatter produces CAP-oriented payloads for EE, Three, and O2.
type capFormatter struct{}

func (capFormatter) content(msgType string, req BroadcastRequest) Payload {
	p := Payload{
		MessageType:   msgType,
		Identifier:    req.Identifier,
		MessageFormat: FormatCAP,
		Headline:      Headline,
		Description:   req.Description,
		Areas:         areaPayloads(req.Areas),
		Sent:          FormatCAPTime(req.Sent),
		Language:      InferLanguage(req.Description),
		Channel:       string(req.Channel),
	}
	if req.Expires != nil {
		p.Expires = FormatCAPTime(*req.Expires)
	}
	return p
}

func (f capFormatter) FormatAlert(req BroadcastRequest) Payload {
	return f.content(MessageTypeAlert, req)
}

func (f capFormatter) FormatUpdate(req BroadcastRequest) Payload {
	p := f.content(MessageTypeUpdate, req)
	p.References = capReferences(req.PreviousMessages)
	return p
}

func (capFormatter) FormatCancel(req BroadcastRequest) Payload {
	return Payload{
		MessageType:   MessageTypeCancel,
		Identifier:    req.Identifier,
		MessageFormat: FormatCAP,
		References:    capReferences(req.PreviousMessages),
		Sent:          FormatCAPTime(req.Sent),
	}
}

func (capFormatter) FormatTest(identifier, _ string) Payload {
	return Payload{
		MessageType:   MessageTypeTest,
		Identifier:    identifier,
		MessageFormat: FormatCAP,
	}
}

func capReferences(prev []PreviousMessage) []Reference {
	refs := make([]Reference, 0, len(prev))
	for _, m := range prev {
		refs = append(refs, Reference{MessageID: m.ID, Sent: FormatCAPTime(m.CreatedAt)})
	}
	return refs
}

// ibagFormatter produces Vodafone's IBAG payloads, which add the sequential
// message number to the message and to each reference.
type ibagFormatter struct{}

func (ibagFormatter) content(msgType string, req BroadcastRequest) Payload {
	p := Payload{
		MessageType:   msgType,
		Identifier:    req.Identifier,
		MessageNumber: req.MessageNumber,
		MessageFormat: FormatIBAG,
		Headline:      Headline,
		Description:   req.Description,
		Areas:         areaPayloads(req.Areas),
		Sent:          FormatCAPTime(req.Sent),
		Language:      InferLanguage(req.Description),
		Channel:       string(req.Channel),
	}
	if req.Expires != nil {
		p.Expires = FormatCAPTime(*req.Expires)
	}
	return p
}

func (f ibagFormatter) FormatAlert(req BroadcastRequest) Payload {
	return f.content(MessageTypeAlert, req)
}

func (f ibagFormatter) FormatUpdate(req BroadcastRequest) Payload {
	p := f.content(MessageTypeUpdate, req)
	p.References = ibagReferences(req.PreviousMessages)
	return p
}

func (ibagFormatter) FormatCancel(req BroadcastRequest) Payload {
	return Payload{
		MessageType:   MessageTypeCancel,
		Identifier:    req.Identifier,
		MessageNumber: req.MessageNumber,
		MessageFormat: FormatIBAG,
		References:    ibagReferences(req.PreviousMessages),
		Sent:          FormatCAPTime(req.Sent),
	}
}

func (ibagFormatter) FormatTest(identifier, messageNumber string) Payload {
	return Payload{
		MessageType:   MessageTypeTest,
		Identifier:    identifier,
		MessageNumber: messageNumber,
		MessageFormat: FormatIBAG,
	}
}

func ibagReferences(prev []PreviousMessage) []Reference {
	refs := make([]Reference, 0, len(prev))
	for _, m := range prev {
		ref := Reference{MessageID: m.ID, Sent: FormatCAPTime(m.CreatedAt)}
		if m.MessageNumber != nil {
			ref.MessageNumber = FormatMessageNumber(*m.MessageNumber)
		}
		refs = append(refs, ref)
	}
	return refs
}
